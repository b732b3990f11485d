// Package report writes the markdown run report of a release.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agentstation/utc"
	md "github.com/nao1215/markdown"

	"github.com/ondata/confini/internal/utils/atomicfile"
	"github.com/ondata/confini/pkg/constants"
)

// Outcome names of a division that did not reach the geometry outcome.
const (
	OutcomeHalted  = "halted"
	OutcomeSkipped = "skipped"
)

// Division is one row of the report.
type Division struct {
	Name       string
	Outcome    string
	Defects    int
	Enrichment string
	Rows       int
	Note       string
}

// Release is the report of one release build.
type Release struct {
	Name      string
	Engine    string
	RunID     string
	Generated utc.Time
	// Divisions are listed in processing order.
	Divisions []Division
	Exports   []string
	Warnings  []string
}

// Write renders r and saves it atomically at path.
func Write(path string, r Release) error {
	return atomicfile.Write(path, func(w io.Writer) error {
		return Render(w, r)
	})
}

// Render writes r as markdown.
func Render(w io.Writer, r Release) error {
	generated := r.Generated
	if generated.IsZero() {
		generated = utc.Now()
	}

	run := ""
	if r.RunID != "" {
		run = " in run " + md.Code(r.RunID)
	}
	doc := md.NewMarkdown(w).
		H1("Release " + r.Name).
		PlainTextf("Generated %s with the %s geometry engine%s.", generated.Format(constants.TimeFormatHuman), r.Engine, run).
		LF()

	order := make([]string, len(r.Divisions))
	rows := make([][]string, len(r.Divisions))
	var defects, repaired int
	for i, d := range r.Divisions {
		order[i] = md.Code(d.Name)
		defects += d.Defects
		if d.Defects > 0 {
			repaired++
		}
		rows[i] = []string{
			d.Name,
			d.Outcome,
			strconv.Itoa(d.Defects),
			d.Enrichment,
			strconv.Itoa(d.Rows),
			d.Note,
		}
	}

	doc.H2("Processing order").
		PlainText(strings.Join(order, " → ")).
		LF()

	doc.H2("Divisions").
		Table(md.TableSet{
			Header: []string{"Division", "Geometry", "Defects", "Enrichment", "Rows", "Notes"},
			Rows:   rows,
		}).
		PlainText(fmt.Sprintf("%d defects repaired in %d of %d divisions.", defects, repaired, len(r.Divisions))).
		LF()

	if len(r.Exports) > 0 {
		doc.H2("Exports").BulletList(r.Exports...)
	}
	if len(r.Warnings) > 0 {
		doc.H2("Warnings").BulletList(r.Warnings...)
	}
	return doc.Build()
}
