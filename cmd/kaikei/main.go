package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kaikei/internal/api"
	"kaikei/internal/api/handlers"
	"kaikei/internal/repository"
	"kaikei/internal/service"
	"kaikei/pkg/config"
	"kaikei/pkg/logger"
	"kaikei/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting kaikei receipt service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	txRepo := repository.NewTransactionRepository(db, appLogger)
	exchangeRepo := repository.NewExchangeRepository(db, appLogger)

	// The gateway refuses to start without credentials; that is a
	// configuration error, not something to retry.
	gateway, err := service.NewGateway(&cfg.Gemini, cfg.RAG.EmbeddingModel, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize LLM gateway", zap.Error(err))
	}

	// Initialize pipeline stages
	retrievalStore := service.NewRetrievalStore(gateway, txRepo, &cfg.RAG, appLogger)
	ocrService := service.NewOCRService(gateway, appLogger)
	parserService := service.NewParserService(gateway, retrievalStore, cfg.RAG.TopK, appLogger)
	verifierService := service.NewVerifierService(gateway, appLogger)
	currencyService := service.NewCurrencyService(exchangeRepo, &cfg.Currency, appLogger)
	notesService := service.NewNotesService(gateway, appLogger)
	confirmer := service.NewAutoConfirmer(appLogger)

	pipeline := service.NewPipeline(
		ocrService, parserService, verifierService,
		currencyService, notesService, confirmer,
		appLogger,
	)

	receiptService := service.NewReceiptService(pipeline, currencyService, txRepo, cfg.Upload.Dir, appLogger)

	// Seed the rate table on startup; stale rates refresh in-band later
	if err := currencyService.RefreshRates(ctx, false); err != nil {
		appLogger.Warn("Initial exchange rate refresh failed", zap.Error(err))
	}

	// Initialize handlers
	receiptHandler := handlers.NewReceiptHandler(receiptService, appLogger)
	ratesHandler := handlers.NewRatesHandler(currencyService, appLogger)

	// Setup router
	app := api.SetupRouter(receiptHandler, ratesHandler)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
