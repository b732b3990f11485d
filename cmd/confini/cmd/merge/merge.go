// Package merge provides the merge command.
package merge

import (
	"github.com/spf13/cobra"

	"github.com/ondata/confini/cmd/application"
	"github.com/ondata/confini/internal/cmd/output"
)

// NewCommand creates the merge command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "merge",
		GroupID: "core",
		Short:   "Merge the built releases into the national registry",
		Long: `Merge consolidates the enriched municipalities of every built release
into the national base registry. Releases that were not built are left out
with a warning, as are releases whose keys match no registry row.

The registry is written next to the release directories together with the
provenance report of its columns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.Confini()
			if err != nil {
				return err
			}
			res, err := c.Merge(cmd.Context())
			if err != nil {
				return err
			}
			m, err := output.Merged(res)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), m, output.MergeTable(m))
		},
	}
}
