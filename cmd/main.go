package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/engine"
	"github.com/TitusNeyland/Pathread/internal/generators"
	"github.com/TitusNeyland/Pathread/internal/logger"
	"github.com/TitusNeyland/Pathread/internal/prompts"
	"github.com/TitusNeyland/Pathread/internal/storage"
	"github.com/TitusNeyland/Pathread/internal/web"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pathread: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Encoding:   cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := engine.NewModelClient(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	if !client.Configured() {
		log.Warn("model provider is not configured; generation requests will be rejected",
			zap.String("provider", client.Name()))
	}

	builder := prompts.NewBuilder(prompts.Defaults{
		Genre:       cfg.Story.Defaults.Genre,
		Tone:        cfg.Story.Defaults.Tone,
		Perspective: cfg.Story.Defaults.Perspective,
		Difficulty:  cfg.Story.Defaults.Difficulty,
	})
	if dir := cfg.Story.TemplatesDir; dir != "" {
		loaded, err := builder.Templates().LoadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to load prompt templates: %w", err)
		}
		log.Info("prompt templates loaded", zap.String("dir", dir), zap.Int("count", loaded))
	}

	store := storage.NewSessionStore(storage.WithContextEntries(cfg.Story.ContextEntries))
	hub := web.NewSessionHub(cfg.Server.AllowedOrigins, log)

	storyEngine := engine.NewEngine(client, builder, store, engine.SettingsFromConfig(cfg.AI),
		engine.WithLogger(log.Named("engine")),
		engine.WithPublisher(hub))

	bios := generators.NewBioGenerator(storyEngine, builder, log.Named("bio"))
	hooks := generators.NewHookGenerator(storyEngine, builder, cfg.Hooks.CacheTTL, cfg.Hooks.CleanupInterval, log.Named("hooks"))

	handlers := web.NewHandlers(storyEngine, bios, hooks, builder.Templates(), hub, log.Named("http"))
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      web.NewRouter(cfg, handlers, log.Named("http")),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("provider", client.Name()),
			zap.String("model", cfg.AI.Model))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}

// loadConfig reads PATHREAD_CONFIG or the default path. A missing default file
// falls back to built-in defaults plus environment overrides.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("PATHREAD_CONFIG")
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
