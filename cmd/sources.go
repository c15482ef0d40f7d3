package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/archive-crawler/internal/source"
)

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists the crawlable sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range source.Names() {
				x, err := source.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, x.BaseURL())
			}
			return nil
		},
	}
}
