package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkharlamov/corporate-agent/internal/config"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/chunking"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/corpus"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/llm/ollama"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/resilience"
	"github.com/mkharlamov/corporate-agent/internal/infrastructure/vector/qdrant"
	"github.com/mkharlamov/corporate-agent/internal/observability/logging"
)

const serviceName = "corporate-agent-indexer"

// The indexer builds the reference index offline. Live workers only ever
// read the collection, so a finished build can be pointed at atomically by
// switching QDRANT_COLLECTION.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	referenceDir := flag.String("dir", cfg.ReferenceDir, "directory with reference documents (.pdf, .docx, .txt, .md)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)
	splitter := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	texts, err := corpus.LoadDir(*referenceDir)
	if err != nil {
		log.Fatalf("load reference corpus: %v", err)
	}
	if len(texts) == 0 {
		log.Fatalf("no reference documents found in %s", *referenceDir)
	}

	indexed := 0
	for _, ref := range texts {
		chunks := splitter.Split(ref.Text)
		if len(chunks) == 0 {
			slog.Warn("reference document produced no chunks", "source", ref.Source)
			continue
		}

		vectors, err := embedder.Embed(ctx, chunks)
		if err != nil {
			log.Fatalf("embed %s: %v", ref.Source, err)
		}
		if err := index.IndexPassages(ctx, ref.Source, chunks, vectors); err != nil {
			log.Fatalf("index %s: %v", ref.Source, err)
		}

		indexed += len(chunks)
		slog.Info("indexed reference document",
			"source", ref.Source,
			"chunks", len(chunks),
		)
	}

	slog.Info("reference index build complete",
		"collection", cfg.QdrantCollection,
		"documents", len(texts),
		"passages", indexed,
	)
}
