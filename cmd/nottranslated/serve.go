package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/preview"
	"github.com/japaniel/nottranslated/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the preview gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			srv := server.New(server.Options{
				Previewer:    client,
				SuspectsRoot: cfg.Suspects.Root,
				StaticRoot:   cfg.Server.StaticRoot,
				Bots:         cfg.Upstream.Bots,
				CORSOrigins:  cfg.Server.CORSOrigins,
				Logger:       a.log.Named("http"),
			})

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			a.log.Info("Starting gateway",
				zap.String("addr", cfg.Server.Addr()),
				zap.String("upstream", client.BaseURL()),
				zap.String("suspects", cfg.Suspects.Root))
			return srv.Run(ctx, cfg.Server.Addr(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
		},
	}
}
