// Package build provides the build and run commands.
package build

import (
	"github.com/spf13/cobra"

	"github.com/ondata/confini"
	"github.com/ondata/confini/cmd/application"
	"github.com/ondata/confini/internal/cmd/output"
)

// NewCommand creates the build command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "build [release...]",
		GroupID: "core",
		Short:   "Build boundary releases",
		Long: `Build acquires the archive of each release, validates and repairs the
geometry of every division, enriches the divisions with the attributes of
their ancestors and exports the configured formats.

Without arguments the release named by SOURCE_NAME is built, or every
release of the sources file when it is unset. Artifacts that already exist
are not rebuilt.`,
		Example: `  confini build                 # Build every release
  confini build 20200101        # Build a single release
  confini build -o json         # Print the summary as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			releases := args
			if len(releases) == 0 && app.SourceName() != "" {
				releases = []string{app.SourceName()}
			}

			c, err := app.Confini()
			if err != nil {
				return err
			}
			results, err := c.Build(cmd.Context(), releases...)
			if err != nil {
				return err
			}
			return writeBuilds(cmd, app, results)
		},
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Build every release and merge the national registry",
		Long: `Run builds every release of the sources file and consolidates the
municipalities of every release into the national registry.

When SOURCE_NAME is set only that release is built and the registry is
left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.Confini()
			if err != nil {
				return err
			}

			if name := app.SourceName(); name != "" {
				results, err := c.Build(cmd.Context(), name)
				if err != nil {
					return err
				}
				return writeBuilds(cmd, app, results)
			}

			results, merged, err := c.Run(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeBuilds(cmd, app, results); err != nil {
				return err
			}
			if merged == nil {
				app.Logger().Info().Msg("No base registry configured, merge skipped")
				return nil
			}
			m, err := output.Merged(merged)
			if err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), m, output.MergeTable(m))
		},
	}
}

func writeBuilds(cmd *cobra.Command, app application.Application, results []confini.ReleaseResult) error {
	builds := output.Builds(results)
	return output.Write(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), builds, output.BuildTable(builds))
}
