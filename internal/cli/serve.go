package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/recorder"
	"github.com/caldway/tradehelm/internal/server"
	"github.com/caldway/tradehelm/pkg/logger"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the decision log's health and metrics endpoints",
		Long: `Serve keeps the process alive exposing /healthz and /metrics for the
decision log, so counters survive between runs against the same store.
Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootLocal(cmd, f)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HealthAddr = addr
			}

			rec := recorder.New(cfg.AuditLogPath, log)
			if err := rec.EnsureStore(); err != nil {
				return err
			}

			srv := server.New(rec, log, server.WithAddr(cfg.HealthAddr))
			srv.Start()
			log.Info("serving health and metrics",
				logger.String("addr", cfg.HealthAddr),
				logger.String("store", cfg.AuditLogPath))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info("shutting down", logger.Duration("timeout", cfg.ShutdownTimeout))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				return err
			}
			return rec.Close(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "bind address (defaults to the configured health_addr)")

	return cmd
}
