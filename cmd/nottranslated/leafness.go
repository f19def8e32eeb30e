package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/japaniel/nottranslated/pkg/sweep"
)

func newLeafnessCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "leafness <all_titles.json> [locales...]",
		Short: "Refresh leaf flags from a full listing of document addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: a.cfg.Upstream.Timeout}
			if err := sweep.EnsureTitleIndex(cmd.Context(), client, args[0], source, a.log.Named("titles")); err != nil {
				return err
			}
			idx, err := sweep.LoadTitleIndex(args[0])
			if err != nil {
				return err
			}
			reports, err := sweep.UpdateLeafness(a.store(), idx, args[1:], a.log.Named("leafness"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range reports {
				fmt.Fprintf(out, "%-8s flipped %3d  unknown %3d  rewritten %t\n", r.Locale, r.Flipped, r.Unknown, r.Rewritten)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "download the listing from this URL when the file is missing")
	return cmd
}
