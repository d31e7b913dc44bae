package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/bootstrap"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/config"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/observability/logging"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:        workerMetrics,
		ObserveQueueLag: workerMetrics.ObserveQueueLag,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	group.Go(func() error {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeDocumentIngested(groupCtx, func(handlerCtx context.Context, ref domain.DocumentRef) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
			defer cancel()

			workerMetrics.StartJob()
			start := time.Now()
			err := app.ProcessUC.ProcessByRef(processCtx, ref)
			workerMetrics.FinishJob(ref, time.Since(start), err)
			return err
		})
	})

	if err := group.Wait(); err != nil {
		slog.Error("worker_stopped", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("worker_stopped")
}
