package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ondata/confini/cmd/confini/cmd/build"
	"github.com/ondata/confini/cmd/confini/cmd/merge"
	"github.com/ondata/confini/cmd/confini/cmd/sources"
	"github.com/ondata/confini/internal/cmd/output"
	"github.com/ondata/confini/pkg/logging"
)

// flags holds the global flag values before they are applied to the
// configuration.
type flags struct {
	config    string
	sources   string
	outputDir string
	engine    string
	parallel  int
	verbose   bool
	quiet     bool
	noColor   bool
	format    string
	logLevel  string
}

// Execute runs the confini CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "confini",
		Short:   "Italian administrative boundaries builder",
		Version: a.version,
		Long: `Confini builds a versioned dataset of Italian administrative boundaries
from the ISTAT shapefile releases.

Every release is downloaded, its geometries are validated and repaired,
each division is enriched with the attributes of its ancestors and the
OntoPiA authority URIs, and the result is exported as shapefile, CSV, JSON,
GeoJSON and GeoPackage. The municipalities of every release are finally
merged into the national ANPR registry.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "management", Title: "Management Commands:"})

	f := rootCmd.PersistentFlags()
	f.StringVar(&a.flags.config, "config", "", "config file (default is .confini.yaml)")
	f.StringVar(&a.flags.sources, "sources", "", "sources file describing the releases (env SOURCE_FILE)")
	f.StringVar(&a.flags.outputDir, "output-dir", "", "root of the generated layout (env OUTPUT_DIR)")
	f.StringVar(&a.flags.engine, "engine", "", "geometry engine: duckdb, spatialite (env ENGINE)")
	f.IntVar(&a.flags.parallel, "parallel", 0, "divisions enriched concurrently within a level (env PARALLEL)")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	f.BoolVarP(&a.flags.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	f.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	f.StringVarP(&a.flags.format, "format", "o", "", "output format: table, json, yaml")
	f.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("confini {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if a.flags.config != "" {
		config, err := LoadConfig(a.flags.config)
		if err != nil {
			return err
		}
		a.config = config
	}
	if err := a.applyFlags(cmd); err != nil {
		return err
	}

	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	return nil
}

// applyFlags copies the flags set on the command line over the configuration.
func (a *App) applyFlags(cmd *cobra.Command) error {
	changed := cmd.Flags().Changed
	if changed("sources") {
		a.config.SourceFile = a.flags.sources
	}
	if changed("output-dir") {
		a.config.OutputDir = a.flags.outputDir
	}
	if changed("engine") {
		a.config.Engine = a.flags.engine
	}
	if changed("parallel") {
		a.config.Parallel = a.flags.parallel
	}
	if _, err := output.ParseFormat(a.flags.format); err != nil {
		return err
	}
	a.config.UpdateFromFlags(a.flags.verbose, a.flags.quiet, a.flags.noColor, a.flags.format, a.flags.logLevel)
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(build.NewCommand(a))
	rootCmd.AddCommand(merge.NewCommand(a))
	rootCmd.AddCommand(build.NewRunCommand(a))

	// Management commands
	rootCmd.AddCommand(sources.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("confini %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
