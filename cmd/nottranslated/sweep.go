package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/db"
	"github.com/japaniel/nottranslated/pkg/preview"
	"github.com/japaniel/nottranslated/pkg/sweep"
)

func newSweepCmd(a *app) *cobra.Command {
	var noJournal bool
	cmd := &cobra.Command{
		Use:   "sweep [locales...]",
		Short: "Check sampled suspects against upstream and mark the ones that are gone",
		Long: `Sweep picks leaf suspects that were not checked recently and asks upstream
whether they still exist. Documents that are gone are marked notFound, the
rest get a fresh check time.

Without locales, up to sweep.max_locales locales are chosen at random,
skipping the ones the previous unnamed run covered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			client, err := preview.NewClient(preview.Options{
				BaseURL:      cfg.Upstream.BaseURL,
				Timeout:      cfg.Upstream.Timeout,
				MaxBodyBytes: cfg.Upstream.MaxBodyBytes,
				UserAgent:    cfg.Upstream.UserAgent,
				Logger:       a.log.Named("upstream"),
			})
			if err != nil {
				return err
			}

			var conn *sql.DB
			if !noJournal && cfg.Sweep.JournalDB != "" {
				conn, err = db.Open(cfg.Sweep.JournalDB)
				if err != nil {
					return err
				}
				defer conn.Close()
			}

			s := sweep.New(a.store(), client, sweep.Options{
				ChecksPerLocale: cfg.Sweep.ChecksPerLocale,
				MaxLocales:      cfg.Sweep.MaxLocales,
				RecheckAfter:    cfg.Sweep.RecheckAfter,
				Delay:           cfg.Sweep.Delay,
				Workers:         cfg.Sweep.Workers,
				DB:              conn,
				Logger:          a.log.Named("sweep"),
			})

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			report, err := s.Run(ctx, args)
			if errors.Is(err, sweep.ErrNoLocales) {
				a.log.Info("Nothing to sweep")
				return nil
			}
			if report != nil {
				out := cmd.OutOrStdout()
				for _, r := range report.Locales {
					fmt.Fprintf(out, "%-8s checked %3d  gone %3d  errors %3d\n", r.Locale, r.Checked, r.NotFound, r.Errors)
				}
				a.log.Info("Sweep finished",
					zap.String("run", report.RunID),
					zap.Int("locales", len(report.Locales)),
					zap.Strings("skipped", report.Skipped))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record checks in the journal database")
	return cmd
}
