// Package app wires configuration into a running pipeline: logger,
// clock, breakers, cache, fetcher, renderer, extractor chain,
// categorizer, validator and the orchestrator on top, plus a small
// observability HTTP listener.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/breaker"
	"github.com/arview/product-crawler/internal/cache"
	"github.com/arview/product-crawler/internal/categorize"
	"github.com/arview/product-crawler/internal/clock/system"
	"github.com/arview/product-crawler/internal/config"
	"github.com/arview/product-crawler/internal/extract"
	"github.com/arview/product-crawler/internal/extract/anthropic"
	"github.com/arview/product-crawler/internal/fetch"
	"github.com/arview/product-crawler/internal/fetch/headless"
	"github.com/arview/product-crawler/internal/logging"
	"github.com/arview/product-crawler/internal/pipeline"
	"github.com/arview/product-crawler/internal/product"
	"github.com/arview/product-crawler/internal/urlnorm"
	"github.com/arview/product-crawler/internal/validate"
)

// App owns every long-lived component of the crawler process.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Breakers     *breaker.Registry
	Cache        *cache.Cache
	Orchestrator *pipeline.Orchestrator

	renderer product.Renderer
	server   *http.Server
}

// New builds the full dependency graph from cfg.
func New(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	clk := system.Clock{}

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.BreakerTimeout(),
	}, clk, logger)

	store := cache.New(cache.Config{
		DefaultTTL:    cfg.CacheTTL(),
		SweepInterval: cfg.CacheSweepInterval(),
	}, clk, logger)

	fetcher := fetch.NewClient(fetch.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.HTTPTimeout(),
		MaxRetries:  cfg.HTTP.MaxRetries,
		BackoffBase: cfg.BackoffInitial(),
		BackoffMax:  cfg.BackoffMax(),
		Limiter: fetch.LimiterConfig{
			DefaultRPS:   cfg.Limiter.DefaultRPS,
			DefaultBurst: cfg.Limiter.DefaultBurst,
		},
	}, breakers, logger)

	resolver := fetch.NewResolver(cfg.RedirectTimeout(), cfg.HTTP.UserAgent, breakers, logger)
	normalizer := urlnorm.New(resolver, cfg.Redirect.MaxRedirects, logger)

	var renderer product.Renderer = headless.NoopRenderer{}
	if cfg.Headless.Enabled {
		r, err := headless.New(headless.Config{
			MaxParallel: cfg.Headless.MaxParallel,
			NavTimeout:  cfg.HeadlessNavTimeout(),
			UserAgent:   cfg.HTTP.UserAgent,
		}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("start headless renderer: %w", err)
		}
		renderer = r
	}

	var aiStrategy *extract.AIStrategy
	if cfg.AI.Enabled {
		model, err := anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: int64(cfg.AI.MaxTokens),
			Timeout:   cfg.AITimeout(),
		}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build model client: %w", err)
		}
		aiStrategy = extract.NewAIStrategy(model, breakers, logger)
	}

	orch, err := pipeline.New(pipeline.Options{
		Normalizer:  normalizer,
		Cache:       store,
		Fetcher:     fetcher,
		Detector:    fetch.DefaultDetector(),
		Renderer:    renderer,
		Extractor:   extract.DefaultChain(aiStrategy, logger),
		Categorizer: categorize.New(logger),
		Validator:   validate.New(logger),
		Clock:       clk,
		Logger:      logger,
		TTL:         cfg.CacheTTL(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	app := &App{
		Config:       cfg,
		Logger:       logger,
		Breakers:     breakers,
		Cache:        store,
		Orchestrator: orch,
		renderer:     renderer,
	}
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return app, nil
}

// Router exposes metrics, health and breaker state.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/breakers", a.handleBreakers)
	r.Post("/breakers/{service}/reset", a.handleBreakerReset)
	return r
}

func (a *App) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.Breakers.Stats()); err != nil {
		a.Logger.Warn("encode breaker stats", zap.Error(err))
	}
}

func (a *App) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	a.Breakers.Reset(service)
	a.Logger.Info("breaker reset by operator", zap.String("service", service))
	w.WriteHeader(http.StatusNoContent)
}

// ServeObservability runs the metrics listener until the context ends.
func (a *App) ServeObservability(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("observability listener started", zap.String("addr", a.server.Addr))
		errCh <- a.server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("observability listener: %w", err)
		}
		return nil
	}
}

// Close releases all long-lived resources.
func (a *App) Close(ctx context.Context) error {
	a.Cache.Close()
	var firstErr error
	if err := a.renderer.Close(ctx); err != nil {
		firstErr = err
	}
	_ = a.Logger.Sync()
	return firstErr
}
