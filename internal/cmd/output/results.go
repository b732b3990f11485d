package output

import (
	"io"
	"strconv"
	"strings"

	"github.com/ondata/confini"
	"github.com/ondata/confini/pkg/catalog"
	"github.com/ondata/confini/pkg/geometry"
	"github.com/ondata/confini/pkg/registry"
)

// Write writes rows to w. Table formats render the table view, the other
// formats encode rows as they are.
func Write(w io.Writer, format Format, rows any, table Data) error {
	formatter := NewFormatter(format)
	if format == FormatTable || format == "" {
		return formatter.Format(w, table)
	}
	return formatter.Format(w, rows)
}

// Division is one row of the processing order of a release.
type Division struct {
	Release string   `json:"release" yaml:"release"`
	Level   int      `json:"level" yaml:"level"`
	Name    string   `json:"division" yaml:"division"`
	Key     string   `json:"key" yaml:"key"`
	Fields  []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Parents []string `json:"parents,omitempty" yaml:"parents,omitempty"`
}

// Order lists the divisions of releases in processing order.
func Order(releases []catalog.Release) []Division {
	var out []Division
	for _, r := range releases {
		for i, level := range r.Levels() {
			for _, d := range level {
				out = append(out, Division{
					Release: r.Name,
					Level:   i,
					Name:    d.Name,
					Key:     d.Key,
					Fields:  d.Fields,
					Parents: d.Parents,
				})
			}
		}
	}
	return out
}

// OrderTable converts the processing order to table data.
func OrderTable(divisions []Division) Data {
	rows := make([][]string, len(divisions))
	for i, d := range divisions {
		rows[i] = []string{
			d.Release,
			strconv.Itoa(d.Level),
			d.Name,
			d.Key,
			strings.Join(d.Fields, ", "),
			strings.Join(d.Parents, ", "),
		}
	}
	return Data{
		Headers:         []string{"Release", "Level", "Division", "Key", "Fields", "Parents"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignLeft},
	}
}

// Build summarizes the build of one division.
type Build struct {
	Release    string `json:"release" yaml:"release"`
	Division   string `json:"division,omitempty" yaml:"division,omitempty"`
	Outcome    string `json:"outcome" yaml:"outcome"`
	Defects    int    `json:"defects" yaml:"defects"`
	Enrichment string `json:"enrichment,omitempty" yaml:"enrichment,omitempty"`
	Rows       int    `json:"rows" yaml:"rows"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Builds flattens release results into one row per division. A skipped
// release yields a single row.
func Builds(results []confini.ReleaseResult) []Build {
	var out []Build
	for _, res := range results {
		if res.Skipped {
			b := Build{Release: res.Release, Outcome: "skipped"}
			if res.Err != nil {
				b.Error = res.Err.Error()
			}
			out = append(out, b)
			continue
		}
		for _, dg := range res.Geometry {
			b := Build{Release: res.Release, Division: dg.Division}
			switch {
			case dg.Outcome != nil:
				b.Outcome = geometry.Kind(dg.Outcome)
				b.Defects = dg.Outcome.Defects()
			case dg.Skipped:
				b.Outcome = "done"
			default:
				b.Outcome = "halted"
				b.Error = dg.Err.Error()
			}
			if er, ok := res.Enrichment.Get(dg.Division); ok {
				b.Enrichment = string(er.Status)
				b.Rows = er.Rows
			}
			out = append(out, b)
		}
	}
	return out
}

// BuildTable converts build rows to table data.
func BuildTable(builds []Build) Data {
	rows := make([][]string, len(builds))
	for i, b := range builds {
		rows[i] = []string{
			b.Release,
			b.Division,
			b.Outcome,
			strconv.Itoa(b.Defects),
			b.Enrichment,
			strconv.Itoa(b.Rows),
			b.Error,
		}
	}
	return Data{
		Headers:         []string{"Release", "Division", "Outcome", "Defects", "Enrichment", "Rows", "Error"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignRight, AlignLeft},
	}
}

// Merge summarizes a registry merge.
type Merge struct {
	Rows    int      `json:"rows" yaml:"rows"`
	Columns []string `json:"columns" yaml:"columns"`
	Merged  []string `json:"merged" yaml:"merged"`
	Omitted []string `json:"omitted,omitempty" yaml:"omitted,omitempty"`
}

// Merged summarizes res.
func Merged(res *registry.Result) (Merge, error) {
	headers, err := res.Table.Headers()
	if err != nil {
		return Merge{}, err
	}
	return Merge{
		Rows:    res.Table.Len(),
		Columns: headers,
		Merged:  res.Merged,
		Omitted: res.Omitted,
	}, nil
}

// MergeTable converts a merge summary to table data.
func MergeTable(m Merge) Data {
	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{"Rows", strconv.Itoa(m.Rows)},
			{"Columns", strings.Join(m.Columns, ", ")},
			{"Merged", strings.Join(m.Merged, ", ")},
			{"Omitted", strings.Join(m.Omitted, ", ")},
		},
	}
}
