package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkharlamov/corporate-agent/internal/bootstrap"
	"github.com/mkharlamov/corporate-agent/internal/config"
	"github.com/mkharlamov/corporate-agent/internal/observability/logging"
	"github.com/mkharlamov/corporate-agent/internal/observability/metrics"
)

const serviceName = "corporate-agent-worker"

// reviewTimeout bounds one full submission review, LLM calls included.
const reviewTimeout = 15 * time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app.Analyzer.WithObserver(analyzerObserver{metrics: workerMetrics})
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeSubmissionReceived(ctx, func(handlerCtx context.Context, submissionID string) error {
		reviewCtx, cancel := context.WithTimeout(handlerCtx, reviewTimeout)
		defer cancel()

		workerMetrics.StartReview()
		start := time.Now()
		reviewErr := app.ReviewUC.ReviewByID(reviewCtx, submissionID)
		workerMetrics.FinishReview(serviceName, time.Since(start), reviewErr)

		if reviewErr != nil {
			slog.Error("submission review failed",
				"submission_id", submissionID,
				"error", reviewErr,
			)
			return reviewErr
		}

		if report, reportErr := app.Repo.GetReport(reviewCtx, submissionID); reportErr == nil {
			workerMetrics.ObserveIssueCount(serviceName, len(report.Issues))
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

// analyzerObserver feeds per-unit analyzer outcomes into the worker metrics.
type analyzerObserver struct {
	metrics *metrics.WorkerMetrics
}

func (o analyzerObserver) RetrievalResult(result string) {
	o.metrics.ObserveRetrieval(serviceName, result)
}

func (o analyzerObserver) JudgmentOutcome(outcome string) {
	o.metrics.ObserveUnitJudgment(serviceName, outcome)
}
