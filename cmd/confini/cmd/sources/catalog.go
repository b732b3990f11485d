// Package sources provides the catalog command.
package sources

import (
	"github.com/spf13/cobra"

	"github.com/ondata/confini/cmd/application"
	"github.com/ondata/confini/internal/cmd/output"
)

// NewCommand creates the catalog command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "catalog [release...]",
		GroupID: "management",
		Short:   "Show the processing order of the configured releases",
		Example: `  confini catalog                # Every release
  confini catalog 20200101 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := app.Catalog()
			if err != nil {
				return err
			}
			releases, err := cat.Select(args...)
			if err != nil {
				return err
			}
			divisions := output.Order(releases)
			return output.Write(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), divisions, output.OrderTable(divisions))
		},
	}
}
