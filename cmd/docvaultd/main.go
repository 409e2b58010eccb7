package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paperhold/docvault/internal/cache"
	"github.com/paperhold/docvault/internal/common"
	"github.com/paperhold/docvault/internal/docproc"
	"github.com/paperhold/docvault/internal/export"
	"github.com/paperhold/docvault/internal/llm"
	"github.com/paperhold/docvault/internal/llm/anthropic"
	"github.com/paperhold/docvault/internal/llm/openai"
	"github.com/paperhold/docvault/internal/pipeline"
	"github.com/paperhold/docvault/internal/repository"
	"github.com/paperhold/docvault/internal/server"
	"github.com/paperhold/docvault/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.EnsureSchema(ctx, pool, logger); err != nil {
		logger.Error("applying schema", "error", err)
		os.Exit(1)
	}

	// Cache store: Postgres by default, SQLite for setups without one.
	var cacheStore cache.Store
	if cfg.Storage.CacheDriver == "sqlite" {
		store, closeStore, err := repository.OpenSQLiteCacheStore(cfg.Storage.SQLitePath, logger)
		if err != nil {
			logger.Error("opening sqlite cache", "path", cfg.Storage.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = closeStore() }()
		cacheStore = store
	} else {
		cacheStore = repository.NewPostgresCacheStore(pool, logger)
	}
	resultCache := cache.New(cacheStore, logger)
	defer resultCache.Close()

	dpClient := docproc.NewClient(docproc.Config{
		BaseURL: cfg.DocProcessor.BaseURL,
		Timeout: cfg.DocProcessor.Timeout,
	}, logger)

	registry := llm.NewRegistry(cfg.Providers.Default, logger)
	if cfg.Providers.OpenAIKey != "" {
		registry.Register(openai.NewClient(openai.Config{
			APIKey:  cfg.Providers.OpenAIKey,
			Model:   cfg.Providers.OpenAIModel,
			Timeout: cfg.Providers.Timeout,
		}, logger))
	}
	if cfg.Providers.AnthropicKey != "" {
		registry.Register(anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.Providers.AnthropicKey,
			Model:   cfg.Providers.AnthropicModel,
			Timeout: cfg.Providers.Timeout,
		}, logger))
	}

	files, err := storage.NewFileStore(cfg.Storage.Root, logger)
	if err != nil {
		logger.Error("initializing file storage", "root", cfg.Storage.Root, "error", err)
		os.Exit(1)
	}
	documents := repository.NewDocumentRepository(pool, logger)

	processor := &pipeline.Processor{
		Router:    pipeline.NewRouter(dpClient, resultCache, cfg.Providers.TwoStepImages, logger),
		Parser:    pipeline.NewParser(resultCache, logger),
		Providers: registry,
		Documents: documents,
		Files:     files,
		Thumbs:    storage.NewThumbnailer(dpClient, logger),
		Resize:    storage.ResizeForUpload,
		Log:       logger,
	}

	srv := server.NewServer(processor, documents, files, export.NewService(documents, logger),
		dpClient, pool, cfg.Server.RequestTimeout, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
