// Package commands implements the nozem CLI's cobra command tree.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"go.nozem.dev/nozem/internal/app"
)

// version is set at build time via -ldflags "-X ...commands.version=...".
var version = "dev"

// CLI wraps the cobra root command over a resolved *app.App.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a CLI with nozem's two subcommands (spec.md §6): `build` and
// `from-lerna`.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "nozem",
		Short:         "A hermetic, content-addressed build tool for JS/TS monorepos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{app: a, rootCmd: rootCmd}
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newFromLernaCmd())

	return c
}

// Execute runs the root command with ctx.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
