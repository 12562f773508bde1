package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"QVeritas/internal/api"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 与异步任务处理器",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg
			if addr != "" {
				cfg.Server.Address = addr
			}
			shutdown, err := cfg.ShutdownTimeout()
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			go func() {
				if err := a.processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Error("任务处理器退出", "error", err)
				}
			}()

			server := api.NewServer(cfg.Server.Address, a.orchestrator,
				api.WithJobs(a.jobs),
				api.WithExporter(a.exporter),
				api.WithMetrics(a.metrics),
				api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
				api.WithShutdownTimeout(shutdown),
			)
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info("服务已退出")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "覆盖 server.address")
	return cmd
}
