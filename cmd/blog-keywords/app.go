package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/analyzer"
	"github.com/edgecomet/blogkeywords/internal/common/config"
	"github.com/edgecomet/blogkeywords/internal/common/logger"
	"github.com/edgecomet/blogkeywords/internal/common/redis"
	"github.com/edgecomet/blogkeywords/internal/events"
	"github.com/edgecomet/blogkeywords/internal/fetcher"
	"github.com/edgecomet/blogkeywords/internal/metrics"
	"github.com/edgecomet/blogkeywords/internal/pagecache"
	"github.com/edgecomet/blogkeywords/internal/pipeline"
	"github.com/edgecomet/blogkeywords/internal/workspace"
)

const defaultConfigPath = "configs/blog-keywords.yaml"

// analyzerMode says whether a command needs the AI backend
type analyzerMode int

const (
	analyzerNone analyzerMode = iota
	analyzerOptional
	analyzerRequired
)

// app holds the components shared by all commands
type app struct {
	cfg     *config.Config
	logger  *logger.DynamicLogger
	metrics *metrics.MetricsCollector
	session *pipeline.Session
	ws      *workspace.Workspace

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigPath
	}

	absPath, err := config.GetConfigPath(path)
	if err != nil {
		return nil, err
	}
	return config.Load(absPath)
}

// newApp loads configuration and wires the session
func newApp(ctx context.Context, mode analyzerMode) (*app, error) {
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		initialLogger.Error("Failed to load configuration", zap.String("path", configPath), zap.Error(err))
		return nil, err
	}
	if workdir != "" {
		cfg.Workdir = workdir
	}

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Error("Failed to create configured logger", zap.Error(err))
		return nil, err
	}
	log := dynamicLogger.Logger

	a := &app{
		cfg:     cfg,
		logger:  dynamicLogger,
		metrics: metrics.NewMetricsCollector(cfg.Metrics.Namespace, log),
	}

	a.ws, err = workspace.Open(filepath.Join(cfg.Workdir, "scraped"), log)
	if err != nil {
		return nil, err
	}

	emitter, err := events.NewFromConfig(cfg.EventLogging, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create event emitter: %w", err)
	}
	a.closers = append(a.closers, emitter.Close)

	fetchOpts := []fetcher.Option{
		fetcher.WithMetrics(a.metrics),
		fetcher.WithEvents(emitter),
	}

	if cfg.Cache.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, redisClient.Close)

		cache := pagecache.New(redisClient, cfg.Cache.TTL.ToDuration(), cfg.Cache.Compression, log)
		fetchOpts = append(fetchOpts, fetcher.WithCache(cache))
		log.Info("Page cache enabled",
			zap.String("redis", cfg.Redis.Addr),
			zap.Duration("ttl", cfg.Cache.TTL.ToDuration()))
	}

	sessionOpts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}

	if mode != analyzerNone {
		client, prompt, err := newAnalyzer(ctx, cfg, a.metrics, log)
		switch {
		case err == nil:
			sessionOpts = append(sessionOpts, pipeline.WithAnalyzer(client), pipeline.WithPrompt(prompt))
		case mode == analyzerOptional && errors.Is(err, analyzer.ErrMissingAPIKey):
			log.Warn("Analyzer disabled", zap.Error(err))
		default:
			a.close()
			return nil, err
		}
	}

	f := fetcher.New(cfg.Fetch, log, fetchOpts...)
	a.session = pipeline.New(cfg, a.ws, f, log, sessionOpts...)

	dynamicLogger.SwitchToConfiguredLevel()
	return a, nil
}

func newAnalyzer(ctx context.Context, cfg *config.Config, collector *metrics.MetricsCollector, log *zap.Logger) (*analyzer.Client, string, error) {
	prompt, err := analyzer.LoadPrompt(cfg.Analyzer.PromptFile)
	if err != nil {
		return nil, "", err
	}

	backend, err := analyzer.NewBackend(ctx, cfg.Analyzer, log)
	if err != nil {
		return nil, "", err
	}

	log.Info("Analyzer ready",
		zap.String("backend", backend.Name()),
		zap.String("model", cfg.Analyzer.Model))

	return analyzer.NewClient(backend, cfg.Analyzer, log, analyzer.WithMetrics(collector)), prompt, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
