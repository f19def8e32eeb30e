package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/config"
	"github.com/japaniel/nottranslated/pkg/logger"
	"github.com/japaniel/nottranslated/pkg/suspects"
)

// interactive marks commands that own the terminal and must not log to it.
const interactive = "interactive"

type app struct {
	cfgPath  string
	logLevel string
	logFile  string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "nottranslated",
		Short: "Find and clear out documents that were never translated",
		Long: `nottranslated tracks wiki documents in non-English locales whose body was
never translated from English.

  serve      preview gateway for the web client
  review     terminal review client for one locale
  sweep      check that sampled suspects still exist upstream
  summarize  rebuild summary.json from the locale files
  leafness   refresh leaf flags from a full title listing`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "nottranslated.log", "log destination for the review client")

	root.AddCommand(
		newServeCmd(a),
		newReviewCmd(a),
		newSweepCmd(a),
		newSummarizeCmd(a),
		newLeafnessCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	if cmd.Annotations[interactive] != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cobra.OnFinalize(func() { _ = f.Close() })
		a.log, err = logger.InitWriter(cfg.Log.Level, f)
		return err
	}
	a.log, err = logger.Init(cfg.Log.Level, cfg.Log.Format)
	return err
}

func (a *app) store() *suspects.Store {
	return suspects.NewStore(a.cfg.Suspects.Root)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
