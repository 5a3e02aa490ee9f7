package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree for app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "fluxd",
		Short:         "Generate images locally with FLUX, from the shell or as a tool server",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level: debug|info|warn|error|off (defaults FLUX_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&app.engineKind, "engine", "", "Engine: http|spawn|synthetic (defaults FLUX_ENGINE or http)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.load()
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		app.close()
	}

	root.AddCommand(
		newGenerateCmd(app),
		newStatusCmd(app),
		newConfigCmd(app),
		newOpenOutputCmd(app),
		newHistoryCmd(app),
		newServeCmd(app),
	)
	return root
}

// MainWithArgs runs the CLI with explicit args and returns an exit code.
func MainWithArgs(app *App, args []string) int {
	root := NewRootCmd(app)
	root.SetArgs(args)
	err := root.Execute()
	app.close()
	if err != nil {
		fmt.Fprintln(app.Err, "Error:", err)
		return 1
	}
	return 0
}

// Main runs the CLI with the process arguments.
func Main() int { return MainWithArgs(NewApp(), os.Args[1:]) }
