package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/referral-intake/internal/ingest"
	"github.com/joseph-ayodele/referral-intake/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background pipeline, hot folder, health and metrics servers",
	Long: `Start the long-running intake service.

Results left pending or processing by a previous run are requeued first.
Files dropped into the watched directories are enqueued once per content hash.
gRPC health and reflection are served on --grpc-addr, Prometheus metrics on --metrics-addr.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := globalConfig
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close(30 * time.Second)

		if n, err := a.intake.RequeueUnsettled(ctx); err != nil {
			logger.Error("requeue of unsettled results failed", "requeued", n, "error", err)
		}

		grpcSrv := server.NewGRPCServer(cfg.Server.GRPCAddr, logger)
		reporter := server.NewHealthReporter(grpcSrv.Health(), a.db, cfg.Server.HealthInterval, logger)
		metrics := server.NewMetricsServer(cfg.Server.MetricsAddr, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return grpcSrv.Serve(gctx) })
		g.Go(func() error { return reporter.Run(gctx) })
		g.Go(func() error { return metrics.Run(gctx) })

		if len(cfg.Ingest.WatchDirs) > 0 {
			hf := ingest.NewHotFolder(
				ingest.NewIngestor(a.intake, cfg.Ingest.UploaderID, logger),
				ingest.HotFolderConfig{
					Roots:       cfg.Ingest.WatchDirs,
					Debounce:    cfg.Ingest.Debounce,
					InitialScan: cfg.Ingest.InitialScan,
				},
				logger,
			)
			g.Go(func() error { return hf.Run(gctx) })
		}

		logger.Info("referrald.started",
			"grpc_addr", cfg.Server.GRPCAddr,
			"metrics_addr", cfg.Server.MetricsAddr,
			"workers", cfg.Queue.Workers,
			"llm_provider", cfg.LLM.Provider,
		)
		err = g.Wait()
		if err != nil && ctx.Err() == nil {
			logger.Error("server stopped with error", "error", err)
			return err
		}
		logger.Info("shutting down")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("grpc-addr", "", "gRPC health listen address")
	serveCmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address")
	serveCmd.Flags().StringSlice("watch", nil, "hot-folder directories to watch")
	serveCmd.Flags().Int("workers", 0, "number of pipeline workers")

	v := configLoader.Viper()
	_ = v.BindPFlag("server.grpc_addr", serveCmd.Flags().Lookup("grpc-addr"))
	_ = v.BindPFlag("server.metrics_addr", serveCmd.Flags().Lookup("metrics-addr"))
	_ = v.BindPFlag("ingest.watch_dirs", serveCmd.Flags().Lookup("watch"))
	_ = v.BindPFlag("queue.workers", serveCmd.Flags().Lookup("workers"))
}
