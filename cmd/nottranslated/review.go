package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/db"
	"github.com/japaniel/nottranslated/pkg/ledger"
	"github.com/japaniel/nottranslated/pkg/preview"
	"github.com/japaniel/nottranslated/pkg/review"
	"github.com/japaniel/nottranslated/pkg/suspects"
	"github.com/japaniel/nottranslated/pkg/tui"
)

func newReviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review [locale] [slug]",
		Short: "Review a locale's suspects in the terminal",
		Long: `Review walks a random sample of a locale's suspects, leaf documents first.
Without arguments it resumes at the last location.`,
		Args:        cobra.MaximumNArgs(2),
		Annotations: map[string]string{interactive: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReview(cmd.Context(), args)
		},
	}
}

func (a *app) runReview(ctx context.Context, args []string) error {
	cfg := a.cfg
	conn, err := db.Open(cfg.Review.StateDB)
	if err != nil {
		return err
	}
	defer conn.Close()
	kv := db.NewKV(conn)

	locale, slug, err := resolveLocation(kv, args)
	if err != nil {
		return err
	}
	store := a.store()
	list, err := store.Locale(locale)
	if err != nil {
		return fmt.Errorf("load locale %s: %w", locale, err)
	}

	ignores := ledger.NewLedger(kv,
		ledger.WithRetention(cfg.Review.IgnoreRetention),
		ledger.WithLogger(a.log.Named("ledger")))
	nav := review.NewNavigator(locale, list, ignores,
		review.WithCap(cfg.Review.SubsetSize),
		review.WithLogger(a.log.Named("review")))
	if slug != "" {
		if err := nav.Open(slug); err != nil {
			// a stored location may point at a suspect that has since gone
			if len(args) > 0 {
				return fmt.Errorf("open %s/%s: %w", locale, slug, err)
			}
			a.log.Warn("Resume target is gone", zap.String("locale", locale), zap.String("slug", slug))
		}
	}

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

	ctx, stop := signalContext(ctx)
	defer stop()

	reloads := make(chan []suspects.Suspect, 1)
	watcher := suspects.NewWatcher(store, locale, a.log.Named("watch"))
	go func() {
		err := watcher.Run(ctx, func(list []suspects.Suspect) {
			select {
			case <-reloads:
			default:
			}
			reloads <- list
		})
		if err != nil {
			a.log.Warn("Suspect watcher stopped", zap.Error(err))
		}
	}()

	model := tui.New(ctx, tui.Deps{
		Navigator:      nav,
		Clicks:         ledger.NewClicks(kv, ledger.WithLogger(a.log.Named("clicks"))),
		Fetcher:        client,
		Locator:        kv,
		Reloads:        reloads,
		WikiBase:       cfg.Upstream.BaseURL,
		ViewBase:       cfg.Upstream.ViewURL,
		Bots:           cfg.Upstream.Bots,
		MirrorInterval: cfg.Review.MirrorInterval,
		Logger:         a.log.Named("tui"),
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// resolveLocation picks the locale and optional slug from the arguments, or
// from the stored location when none are given.
func resolveLocation(loc review.Locator, args []string) (locale, slug string, err error) {
	switch len(args) {
	case 2:
		return args[0], args[1], nil
	case 1:
		return args[0], "", nil
	}
	stored, err := loc.Location()
	if err != nil {
		return "", "", fmt.Errorf("read stored location: %w", err)
	}
	locale, slug, ok := review.ParseLocation(stored)
	if !ok {
		return "", "", errors.New("no locale given and no previous session to resume")
	}
	return locale, slug, nil
}
