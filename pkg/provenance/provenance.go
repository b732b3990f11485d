// Package provenance provides column-level tracking of where the columns
// of the national registry come from and what the merge did to them.
package provenance

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/utc"
	"github.com/goccy/go-yaml"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/table"
	"github.com/ondata/confini/pkg/types"
)

// Action is something the merge did to a column.
type Action string

const (
	// ActionAdded means the column entered the registry from a release.
	ActionAdded Action = "added"
	// ActionCollapsed means the column duplicated an earlier one and was removed.
	ActionCollapsed Action = "collapsed"
	// ActionRenamed means the release qualifier was dropped from the name.
	ActionRenamed Action = "renamed"
	// ActionQualified means the column kept its release qualifier to stay unique.
	ActionQualified Action = "qualified"
	// ActionReplaced means the column was overwritten by a recomputed one.
	ActionReplaced Action = "replaced"
	// ActionDropped means the column was removed after being folded into another.
	ActionDropped Action = "dropped"
	// ActionComputed means the column was computed from other columns.
	ActionComputed Action = "computed"
)

// Event records one action on a column.
type Event struct {
	Action    Action   `yaml:"action"`
	Release   string   `yaml:"release,omitempty"`
	Into      string   `yaml:"into,omitempty"` // Column that absorbed this one
	Reason    string   `yaml:"reason,omitempty"`
	Timestamp utc.Time `yaml:"timestamp"`
}

// Map holds the events of every column, keyed by the column's
// qualified name at the time it entered the registry.
type Map map[string][]Event

// Tracker records column events during a merge.
type Tracker interface {
	// Track records an event for a column
	Track(column string, e Event)

	// FindByColumn retrieves the events of a column
	FindByColumn(column string) []Event

	// Map returns the complete event map
	Map() Map

	// Clear removes all events
	Clear()
}

// tracker is the default implementation.
type tracker struct {
	mu      sync.Mutex
	events  Map
	enabled bool
}

// NewTracker creates a new provenance tracker.
func NewTracker(enabled bool) Tracker {
	return &tracker{
		events:  make(Map),
		enabled: enabled,
	}
}

// Track records an event for a column.
func (p *tracker) Track(column string, e Event) {
	if !p.enabled {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = utc.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[column] = append(p.events[column], e)
}

// FindByColumn retrieves the events of a column.
func (p *tracker) FindByColumn(column string) []Event {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events[column]...)
}

// Map returns the complete event map.
func (p *tracker) Map() Map {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Return a copy to prevent external modification
	result := make(Map, len(p.events))
	for k, v := range p.events {
		result[k] = append([]Event{}, v...)
	}
	return result
}

// Clear removes all events.
func (p *tracker) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make(Map)
}

// Report is the provenance document saved next to the registry.
type Report struct {
	Registry  string   `yaml:"registry"`
	Generated utc.Time `yaml:"generated"`
	Releases  []string `yaml:"releases"`
	Omitted   []string `yaml:"omitted,omitempty"`
	Columns   []Column `yaml:"columns"`
	Removed   []Column `yaml:"removed,omitempty"`
}

// Column describes one column of the registry.
type Column struct {
	Name     string           `yaml:"name"`
	Kind     types.ColumnKind `yaml:"kind"`
	Release  string           `yaml:"release,omitempty"`
	Division string           `yaml:"division,omitempty"`
	History  []Event          `yaml:"history,omitempty"`
}

// GenerateReport builds a report for the final registry columns. final
// pairs each output column with the name it was tracked under.
// Tracked columns missing from final are listed as removed.
func GenerateReport(registry string, releases, omitted []string, final []Tracked, events Map) *Report {
	report := &Report{
		Registry:  registry,
		Generated: utc.Now(),
		Releases:  append([]string(nil), releases...),
		Omitted:   append([]string(nil), omitted...),
	}

	kept := make(map[string]bool, len(final))
	for _, f := range final {
		kept[f.Key] = true
		report.Columns = append(report.Columns, Column{
			Name:     f.Header,
			Kind:     f.Origin.Kind,
			Release:  f.Origin.Release,
			Division: f.Origin.Division,
			History:  events[f.Key],
		})
	}

	for key, history := range events {
		if kept[key] {
			continue
		}
		report.Removed = append(report.Removed, Column{Name: key, History: history})
	}
	slices.SortFunc(report.Removed, func(a, b Column) int {
		return strings.Compare(a.Name, b.Name)
	})
	return report
}

// Tracked pairs a final column with its tracking key.
type Tracked struct {
	Key    string
	Header string
	Origin table.Origin
}

// String generates a string representation of the provenance report.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")
	sb.WriteString(fmt.Sprintf("Registry: %s\n", r.Registry))
	sb.WriteString(fmt.Sprintf("Releases: %s\n", strings.Join(r.Releases, ", ")))
	if len(r.Omitted) > 0 {
		sb.WriteString(fmt.Sprintf("Omitted:  %s\n", strings.Join(r.Omitted, ", ")))
	}
	sb.WriteString("\n")

	for _, c := range r.Columns {
		sb.WriteString(fmt.Sprintf("  %s (%s", c.Name, c.Kind))
		if c.Release != "" {
			sb.WriteString(" from " + c.Release)
		}
		sb.WriteString(")\n")
		for i, e := range c.History {
			if i > 3 { // Limit history display
				sb.WriteString(fmt.Sprintf("      ... and %d more\n", len(c.History)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("      - %s", e.Action))
			if e.Into != "" {
				sb.WriteString(" into " + e.Into)
			}
			if e.Reason != "" {
				sb.WriteString(": " + e.Reason)
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Removed) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d columns removed\n", len(r.Removed)))
	}
	return sb.String()
}

// Save writes the report as YAML.
func Save(path string, r *Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	return atomicfile.Write(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return errors.WrapIO("write", path, err)
		}
		return nil
	})
}

// Load reads a report saved by Save.
// Returns nil, nil if the file doesn't exist (not an error).
func Load(path string) (*Report, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the layout
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &r, nil
}
