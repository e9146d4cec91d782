package commands

import (
	"github.com/spf13/cobra"

	"go.nozem.dev/nozem/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var (
		concurrency int
		bail        bool
		noBail      bool
		downstream  bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "build [TARGET...]",
		Short: "Build one or more units and everything they depend on",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Run(cmd.Context(), ".", args, app.RunOptions{
				Concurrency: concurrency,
				Bail:        bail && !noBail,
				Downstream:  downstream,
			})
			return err
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "maximum number of units to build at once")
	cmd.Flags().BoolVarP(&bail, "bail", "b", true, "stop scheduling new units after the first failure")
	cmd.Flags().BoolVar(&noBail, "no-bail", false, "continue building independent branches after a failure")
	cmd.Flags().BoolVarP(&downstream, "down", "d", false, "also build everything that depends on the selected targets")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "increase log verbosity")

	return cmd
}
