package commands

import (
	"github.com/spf13/cobra"

	"go.nozem.dev/nozem/internal/lerna"
)

func (c *CLI) newFromLernaCmd() *cobra.Command {
	var root string
	var out string

	cmd := &cobra.Command{
		Use:   "from-lerna",
		Short: "Generate nozem.json from a Lerna-style monorepo",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			manifest, err := lerna.Convert(root)
			if err != nil {
				return err
			}
			return lerna.Write(out, manifest)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "monorepo root to scan for lerna.json or package.json workspaces")
	cmd.Flags().StringVarP(&out, "output", "o", "nozem.json", "path to write the generated unit manifest to")

	return cmd
}
