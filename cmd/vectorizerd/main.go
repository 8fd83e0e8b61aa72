// Command vectorizerd is the composition root: it wires configuration into
// every collaborator (checkpoint store, job manager, embedding backends,
// vector store, extractor registry, pipeline, ingestion service, search
// service, document catalog, HTTP driver) and runs until a shutdown
// signal arrives, grounded on the teacher's cmd/ragd/main.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Theubaa/universal-vectorizer/internal/catalog"
	"github.com/Theubaa/universal-vectorizer/internal/checkpoint"
	"github.com/Theubaa/universal-vectorizer/internal/config"
	"github.com/Theubaa/universal-vectorizer/internal/embedding"
	"github.com/Theubaa/universal-vectorizer/internal/extract"
	"github.com/Theubaa/universal-vectorizer/internal/httpapi"
	"github.com/Theubaa/universal-vectorizer/internal/ingestsvc"
	"github.com/Theubaa/universal-vectorizer/internal/job"
	"github.com/Theubaa/universal-vectorizer/internal/pipeline"
	"github.com/Theubaa/universal-vectorizer/internal/search"
	"github.com/Theubaa/universal-vectorizer/internal/vectorstore"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("vectorizerd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting universal-vectorizer",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"vectorstore_provider", cfg.VectorStoreProvider,
		"embedding_backend", cfg.EmbeddingBackend,
	)

	store, err := buildVectorStore(cfg)
	if err != nil {
		return fmt.Errorf("build vector store: %w", err)
	}
	slog.Info("connected to vector store", "provider", cfg.VectorStoreProvider)

	primary, fallback := buildEmbedders(cfg)
	slog.Info("initialized embedding backends", "primary", primary.Name(), "fallback", fallback.Name())

	db, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to catalog database: %w", err)
	}
	defer db.Close()
	catalogRepo := catalog.NewRepository(db)
	slog.Info("connected to document catalog")

	checkpoints := checkpoint.New(cfg.CheckpointDir)
	jobs := job.New()
	registry := extract.NewDefaultRegistry()
	urlExtractor := &extract.URLExtractor{}

	p, err := pipeline.New(pipeline.Config{
		ChunkSize:             cfg.DefaultChunkSize,
		ChunkOverlap:          cfg.DefaultChunkOverlap,
		BatchSize:             cfg.ChunkBatchSize,
		EmbeddingMaxRetries:   cfg.EmbeddingMaxRetries,
		EmbeddingRetryDelay:   cfg.EmbeddingRetryDelay,
		EmbeddingRetryBackoff: cfg.EmbeddingRetryBackoff,
		Collection:            cfg.Collection,
	}, primary, fallback, store, checkpoints)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ingestSvc := ingestsvc.New(jobs, p, registry, urlExtractor, cfg.IngestionConcurrency, logger, catalogRecorder{catalogRepo})
	searchSvc := search.New(primary, store, cfg.Collection, false)

	httpServer := httpapi.New(httpapi.Config{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: []string{"*"},
	}, jobs, ingestSvc, searchSvc)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}

	slog.Info("vectorizerd stopped")
	return nil
}

func buildVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStoreProvider {
	case "qdrant":
		return vectorstore.NewQdrantStore(cfg.QdrantGRPCURL)
	case "chroma":
		return vectorstore.NewChromaStore(cfg.ChromaBaseURL, http.DefaultClient), nil
	case "pinecone":
		return vectorstore.NewPineconeStore(cfg.PineconeBaseURL, cfg.PineconeAPIKey, http.DefaultClient), nil
	default:
		return nil, fmt.Errorf("unknown vectorstore provider %q", cfg.VectorStoreProvider)
	}
}

func buildEmbedders(cfg *config.Config) (primary, fallback embedding.Backend) {
	remote := embedding.NewRemoteBackend(cfg.RemoteEmbeddingURL, cfg.RemoteEmbeddingModel, cfg.RemoteEmbeddingAPIKey, http.DefaultClient)
	local := embedding.NewLocalBackend(cfg.LocalEmbeddingModel, cfg.LocalEmbeddingDimension, cfg.LocalEmbeddingWorkers)

	if cfg.EmbeddingBackend == "local" {
		return local, remote
	}
	return remote, local
}

// catalogRecorder adapts catalog.Repository to ingestsvc.CompletionRecorder,
// stamping the durable row's timestamps and id at the point of recording.
type catalogRecorder struct {
	repo *catalog.Repository
}

func (c catalogRecorder) Record(ctx context.Context, doc ingestsvc.CompletedDocument) error {
	now := time.Now().UTC()
	return c.repo.Record(ctx, catalog.Document{
		ID:          doc.JobID,
		Source:      doc.Source,
		ContentHash: doc.ContentHash,
		ChunkCount:  doc.ChunkCount,
		Metadata:    doc.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
