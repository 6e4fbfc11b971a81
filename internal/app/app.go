// Package app provides application initialization and dependency wiring.
//
// Setup builds the component graph in dependency order: configuration,
// logger, database pool (running migrations first), chunk store, embedder,
// and the ingestion and retrieval coordinators. Commands consume the
// resulting App and Close it on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallkit/recallkit/db"
	"github.com/recallkit/recallkit/internal/config"
	"github.com/recallkit/recallkit/internal/knowledge"
	"github.com/recallkit/recallkit/internal/log"
)

// App is the core application container.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Store     *knowledge.Store
	Ingestor  *knowledge.Ingestor
	Retriever *knowledge.Retriever
}

// Setup initializes the application: runs migrations, opens the connection
// pool, and wires the knowledge coordinators.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store, err := knowledge.NewStore(pool, logger.With("component", "store"))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	embedder, err := knowledge.NewGoogleEmbedder(ctx, cfg.EmbedderModel, int32(cfg.EmbedderDimension))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	ingestor, err := knowledge.NewIngestor(embedder, store,
		logger.With("component", "ingestor"),
		knowledge.WithMaxChunkChars(cfg.MaxChunkChars),
		knowledge.WithConcurrency(cfg.IngestConcurrency),
		knowledge.WithEmbedRate(cfg.EmbedRate))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}

	retriever, err := knowledge.NewRetriever(embedder, store,
		logger.With("component", "retriever"))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Store:     store,
		Ingestor:  ingestor,
		Retriever: retriever,
	}, nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}
