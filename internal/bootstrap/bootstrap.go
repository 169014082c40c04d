package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/mkharlamov/corporate-agent/internal/config"
	"github.com/mkharlamov/corporate-agent/internal/core/ports"
	"github.com/mkharlamov/corporate-agent/internal/core/rules"
	"github.com/mkharlamov/corporate-agent/internal/core/usecase"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/docx"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/llm/ollama"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/queue/nats"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/repository/postgres"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/resilience"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/storage/localfs"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Rules  *rules.Rules

	Queue    ports.MessageQueue
	Repo     ports.SubmissionRepository
	Storage  ports.ObjectStorage
	Index    ports.ReferenceIndex
	Embedder ports.Embedder

	SubmitUC ports.SubmissionIngestor
	ReviewUC ports.SubmissionReviewer

	// Analyzer is exposed so the worker binary can attach its metrics
	// observer before consuming jobs.
	Analyzer *usecase.ClauseAnalyzer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSubmissionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	complianceRules, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(executor)
	judge := ollama.NewJudge(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	extractor := docx.NewExtractor(storage)
	annotator := docx.NewAnnotator()

	classifier := usecase.NewProcessClassifier(complianceRules)
	analyzer := usecase.NewClauseAnalyzer(complianceRules, index, judge, usecase.AnalyzerConfig{
		TopK:             cfg.RetrievalTopK,
		Workers:          cfg.AnalyzerWorkers,
		RetrievalTimeout: time.Duration(cfg.RetrievalTimeoutSeconds) * time.Second,
		JudgmentTimeout:  time.Duration(cfg.JudgmentTimeoutSeconds) * time.Second,
		CallsPerSecond:   float64(cfg.AnalyzerCallsPerSecond),
	})

	submitUC := usecase.NewSubmitUseCase(repo, storage, queue)
	reviewUC := usecase.NewReviewSubmissionUseCase(repo, storage, extractor, annotator, classifier, analyzer, complianceRules)

	return &App{
		Config: cfg,
		Rules:  complianceRules,

		Queue:    queue,
		Repo:     repo,
		Storage:  storage,
		Index:    index,
		Embedder: embedder,

		SubmitUC: submitUC,
		ReviewUC: reviewUC,

		Analyzer: analyzer,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
