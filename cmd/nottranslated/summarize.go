package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/japaniel/nottranslated/pkg/suspects"
)

func newSummarizeCmd(a *app) *cobra.Command {
	var languagesPath string
	var strict bool
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Rebuild summary.json from the locale files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			langs, err := suspects.DefaultLanguages()
			if languagesPath != "" {
				langs, err = suspects.LoadLanguages(languagesPath)
			}
			if err != nil {
				return err
			}
			entries, err := suspects.BuildSummary(a.store(), suspects.SummaryOptions{
				Languages: langs,
				Strict:    strict || a.cfg.Suspects.Strict,
				Logger:    a.log.Named("summary"),
			})
			if err != nil {
				return err
			}
			count, inception := suspects.Totals(entries)
			fmt.Fprintf(cmd.OutOrStdout(), "%d locales, %d suspects left of %d\n", len(entries), count, inception)
			return nil
		},
	}
	cmd.Flags().StringVar(&languagesPath, "languages", "", "YAML file of locale display names (default: built-in table)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a locale has more suspects than at inception")
	return cmd
}
