// Command seed rebuilds the retrieval-augmentation index from the receipt
// texts already stored in the database. Run it after bulk imports or when the
// persisted index artifacts are suspect.
package main

import (
	"context"
	"log"

	"kaikei/internal/repository"
	"kaikei/internal/service"
	"kaikei/pkg/config"
	"kaikei/pkg/logger"
	"kaikei/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	txRepo := repository.NewTransactionRepository(db, appLogger)

	gateway, err := service.NewGateway(&cfg.Gemini, cfg.RAG.EmbeddingModel, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize LLM gateway", zap.Error(err))
	}

	store := service.NewRetrievalStore(gateway, txRepo, &cfg.RAG, appLogger)

	appLogger.Info("Rebuilding retrieval index",
		zap.String("index_path", cfg.RAG.IndexPath),
		zap.String("texts_path", cfg.RAG.TextsPath),
	)

	if err := store.Rebuild(ctx); err != nil {
		appLogger.Fatal("Failed to rebuild retrieval index", zap.Error(err))
	}

	appLogger.Info("Retrieval index rebuilt successfully")
}
