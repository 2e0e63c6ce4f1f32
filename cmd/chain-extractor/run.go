package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devblac/chain-extractor/internal/engine"
	"github.com/devblac/chain-extractor/internal/health"
	"github.com/devblac/chain-extractor/internal/logging"
	"github.com/devblac/chain-extractor/internal/metrics"
	"github.com/devblac/chain-extractor/internal/sink"
	"github.com/devblac/chain-extractor/internal/source"
	"github.com/spf13/cobra"
)

var (
	flagDryRun  bool
	flagHealth  string
	flagMetrics string
)

func init() {
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Log blocks instead of sending to sinks")
	runCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	runCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run extraction pipelines until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var sender sink.Sender
		if flagDryRun {
			sender = sink.NewLogSender(log)
		} else {
			senders, closers, err := buildSinks(ctx, cfg.Sinks, store, log)
			if err != nil {
				return err
			}
			defer closeAll(closers)
			sender = senders
		}

		var mtr *metrics.Metrics
		if flagMetrics != "" {
			mtr = metrics.Init()
			log.Info("metrics enabled", "addr", flagMetrics)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{Addr: flagMetrics, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}

		coord := engine.NewCoordinator(store, newRegistry(), sender, engine.Settings{
			RetryDelay:     cfg.Global.RetryDelayDuration(),
			AttemptTimeout: cfg.Global.AttemptTimeoutDuration(),
			QueueCapacity:  cfg.Global.QueueCapacity,
		}, mtr, log)

		pipelines, err := coord.Build(ctx)
		if err != nil {
			return err
		}
		if len(pipelines) == 0 {
			return fmt.Errorf("no runnable pipelines")
		}

		if flagHealth != "" {
			adapters := map[string]source.Adapter{}
			for _, p := range pipelines {
				adapters[p.Blockchain.Name] = p.Adapter
			}
			healthSrv := health.Serve(flagHealth, health.Checker{
				DBPing:  store.Ping,
				RPCPing: health.FromAdapters(adapters).Ping,
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		log.Info("pipelines starting", "count", len(pipelines), "dry_run", flagDryRun)
		err = coord.RunPipelines(ctx, pipelines)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("run error", "error", err)
			return err
		}
		log.Info("shutdown complete")
		return nil
	},
}
