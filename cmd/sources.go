package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newSourcesCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured news sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := cc.load()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cfg.Sources))
			for _, s := range cfg.Sources {
				var kinds []string
				if s.HasFeed() {
					kinds = append(kinds, "feed")
				}
				if s.HasMarkup() {
					kinds = append(kinds, "markup")
				}
				state := "enabled"
				if s.Disabled {
					state = "disabled"
				}
				rows = append(rows, []string{
					s.Name,
					strings.Join(kinds, "+"),
					strconv.Itoa(len(s.ListingURLs)),
					strings.Join(s.CategoryNames(), ", "),
					strings.Join(s.Domains, ", "),
					state,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(sourceColumns, rows, nil))
			return nil
		},
	}
}
