package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic-research/contentgraph/internal/mcpserve"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveMetricsAddr string
	serveWarm        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve query, relations and resolve tools over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveMetricsAddr != "" {
			reg := prometheus.NewRegistry()
			if err := e.cache.RegisterMetrics(reg); err != nil {
				return err
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: serveMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					e.logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx) // best effort
			}()
			e.logger.Info("serving metrics", zap.String("addr", serveMetricsAddr))
		}

		if serveWarm {
			if _, err := e.cache.Get(ctx, e.relations.Options()); err != nil {
				return err
			}
		}

		e.logger.Info("serving MCP over stdio")
		err = mcpserve.ServeStdio(ctx, &mcpserve.Handler{
			Query:     e.engine,
			Relations: e.relations,
			Refs:      e.refs,
			Logger:    e.logger,
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics", "", "Expose Prometheus metrics on this address, e.g. :9090")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", true, "Build the relationship graph before accepting requests")
	rootCmd.AddCommand(serveCmd)
}
