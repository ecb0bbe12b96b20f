package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/eth-comb/app/api"
	"github.com/lysyi3m/eth-comb/app/cfg"
	"github.com/lysyi3m/eth-comb/app/classify"
	"github.com/lysyi3m/eth-comb/app/database"
	"github.com/lysyi3m/eth-comb/app/entity"
	"github.com/lysyi3m/eth-comb/app/feed"
	"github.com/lysyi3m/eth-comb/app/normalize"
	"github.com/lysyi3m/eth-comb/app/pipeline"
	"github.com/lysyi3m/eth-comb/app/source"
	"github.com/lysyi3m/eth-comb/app/summarize"
	"github.com/lysyi3m/eth-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Eth Comb", "version", appCfg.Version, "pipeline_version", appCfg.PipelineVersion)

	db, err := database.NewConnection(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		fatal("Failed to run database migrations", err)
	}
	slog.Info("Database ready", "driver", db.Driver, "schema_version", version, "dirty", dirty)

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		fatal("Failed to load source configurations", err)
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount(), "dir", appCfg.SourcesDir)

	summarizer, err := summarize.New(summarize.Config{
		Provider:     appCfg.SummarizerProvider,
		Endpoint:     appCfg.SummarizerEndpoint,
		Model:        appCfg.SummarizerModel,
		APIKey:       appCfg.SummarizerAPIKey,
		SystemPrompt: appCfg.SummarizerPrompt,
		Timeout:      time.Duration(appCfg.SummarizerTimeout) * time.Second,
	})
	if err != nil {
		fatal("Failed to configure summarizer", err)
	}

	sourceRepo := database.NewSourceRepository(db)
	rawItemRepo := database.NewRawItemRepository(db)
	cardRepo := database.NewCardRepository(db)

	configs := configCache.GetConfigs()
	registered := make([]database.Source, 0, len(configs))
	for _, config := range configs {
		registered = append(registered, config.ToSource())
	}

	registry := source.NewRegistry(source.Options{
		UserAgent:   appCfg.UserAgent,
		Timeout:     time.Duration(appCfg.FetchTimeout) * time.Second,
		GitHubToken: appCfg.GitHubToken,
		NewsAPIKey:  appCfg.NewsAPIKey,
	})

	p := pipeline.New(pipeline.Deps{
		RawItems:   rawItemRepo,
		Cards:      cardRepo,
		Summarizer: summarizer,
		Classifier: classify.NewClassifier().WithRules(classify.RegistryRules(registered)...),
		Normalizer: normalize.NewNormalizer(),
		Checker:    entity.NewChecker(),
		Logger:     slog.Default(),
	}, pipeline.Config{
		BatchSize: appCfg.BatchSize,
		Workers:   appCfg.PipelineWorkers(),
		Version:   appCfg.PipelineVersion,
	})

	scheduler := tasks.NewScheduler(configCache, sourceRepo, rawItemRepo, registry, p, tasks.SchedulerConfig{
		Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
		WorkerCount: appCfg.PollWorkers,
	})

	if appCfg.Once {
		runOnce(scheduler)
		return
	}

	slog.Info("Starting background scheduler", "workers", appCfg.PollWorkers, "pipeline_workers", appCfg.PipelineWorkers())
	scheduler.Start()

	generator := feed.NewGenerator(cmp.Or(appCfg.BaseURL, "http://localhost:"+appCfg.Port), appCfg.Version)
	handler := api.NewHandler(configCache, sourceRepo, cardRepo, rawItemRepo, generator, scheduler)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Shutdown complete")
}

func runOnce(scheduler *tasks.Scheduler) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := scheduler.RunOnce(ctx)
	scheduler.Stop()

	slog.Info("Run completed",
		"total", stats.Total,
		"published", stats.Published,
		"skipped_empty", stats.SkippedEmpty,
		"rejected_entities", stats.RejectedEntities,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed)

	// RunOnce only reports store failures; source and item errors are already logged.
	if err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
