package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fundsheet/fundsheet/internal/domain/extract/handler"
	"github.com/fundsheet/fundsheet/internal/domain/extract/service"
	"github.com/fundsheet/fundsheet/internal/domain/summary"
	"github.com/fundsheet/fundsheet/pkg/config"
	"github.com/fundsheet/fundsheet/pkg/cron"
	"github.com/fundsheet/fundsheet/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	FileStorage storage.Storage
	Summarizer  summary.Summarizer

	ExtractService *service.Service
	ExtractHandler *handler.ExtractHandler
	Scheduler      *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.ExtractHandler = handler.NewExtractHandler(deps.ExtractService, deps.FileStorage, cfg, logger)
	deps.Scheduler = cron.NewScheduler(deps.FileStorage, cfg.Storage.RetainOutputs, logger)

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

func (d *Dependencies) initStorage() error {
	store, err := storage.New(&storage.Config{
		LocalPath:     d.Config.Storage.LocalPath,
		BaseURL:       d.Config.Server.BaseURL,
		SigningSecret: d.Config.Storage.SigningSecret,
	})
	if err != nil {
		return err
	}
	d.FileStorage = store

	d.Logger.Info("storage initialized", slog.String("path", d.Config.Storage.LocalPath))
	return nil
}

func (d *Dependencies) initServices(ctx context.Context) error {
	gem, err := summary.NewGemini(ctx, summary.Config{
		APIKey:            d.Config.Gemini.APIKey,
		Model:             d.Config.Gemini.Model,
		BodyMaxChars:      d.Config.Gemini.BodyMaxChars,
		RequestsPerSecond: d.Config.Gemini.RequestsPerSecond,
	}, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init summarizer: %w", err)
	}
	if gem != nil {
		d.Summarizer = gem
	} else {
		d.Logger.Info("no Gemini API key set, AI summaries disabled")
	}

	d.ExtractService = service.New(d.FileStorage, d.Summarizer, service.Config{
		DefaultMinBudgetM: d.Config.Processing.DefaultMinBudgetM,
		MaxSummaryTopics:  d.Config.Gemini.MaxTopics,
		SummaryTimeBudget: d.Config.Processing.SummaryTimeBudget,
		PresignTTL:        d.Config.Storage.PresignTTL,
	}, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}
