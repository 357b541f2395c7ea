package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hockeytools/rules-engine/internal/bootstrap"
	"github.com/hockeytools/rules-engine/internal/config"
	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
	"github.com/hockeytools/rules-engine/internal/observability/logging"
	"github.com/hockeytools/rules-engine/internal/observability/metrics"
)

const serviceName = "rules-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestRequested(ctx, func(handlerCtx context.Context, req ports.IngestRequest) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerRunLimit)
		defer cancel()

		workerMetrics.StartRun()
		start := time.Now()

		run, err := app.Ingestor.Ingest(runCtx, req)
		workerMetrics.FinishRun(serviceName, req.Scope.Variant, time.Since(start), err)
		if err != nil {
			stage := domain.StagePersist
			if run != nil && run.FailedStage != "" {
				stage = run.FailedStage
			}
			workerMetrics.RecordStageFailure(serviceName, stage)
			return err
		}

		workerMetrics.ObserveChunksPersisted(serviceName, req.Scope.Variant, run.ChunksProduced)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
