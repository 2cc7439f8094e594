package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fintools/internal/cache"
	"fintools/internal/config"
	apierrors "fintools/internal/errors"
	"fintools/internal/exporter"
	"fintools/internal/infrastructure"
	"fintools/internal/provider"
	"fintools/internal/scrape"
	"fintools/internal/services"
	"fintools/internal/tools"
	transporthttp "fintools/internal/transport/http"
	"fintools/internal/websocket"
)

// Application holds the wired components and owns their lifecycle.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger
	otel   *infrastructure.OTelProviders
	cache  cache.Cache
	server *http.Server
}

// New builds the application from configuration. Construction fails fast on
// any invalid wiring; nothing starts listening yet.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds the application from an already validated config.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	metrics, err := infrastructure.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	store, err := cache.New(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	client := provider.NewClient(cfg.Provider, logger)

	var fetcher scrape.Fetcher
	if cfg.Provider.RenderNews {
		fetcher = scrape.NewRenderFetcher(cfg.Provider.UserAgent, logger)
	} else {
		fetcher = scrape.NewHTTPFetcher(cfg.Provider.Timeout, cfg.Provider.UserAgent)
	}

	registry, err := tools.NewCatalog(tools.CatalogDeps{
		Config:   cfg,
		Provider: client,
		Cache:    store,
		Exporter: exporter.NewXLSX(cfg.Export.Dir),
		Fetcher:  fetcher,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build operation catalog: %w", err)
	}

	dispatcher := tools.NewDispatcher(registry, cfg.Server.InvokeTimeout, logger, metrics)
	streamer := tools.NewStreamer(registry, cfg.Server.InvokeTimeout, logger, metrics)
	errs := apierrors.NewErrorHandler(logger)

	router := transporthttp.NewRouter(transporthttp.RouterDeps{
		Config:  cfg,
		Logger:  logger,
		Tools:   transporthttp.NewToolsHandler(registry, dispatcher, errs, logger),
		Stream:  transporthttp.NewStreamHandler(streamer, errs, logger),
		Health:  transporthttp.NewHealthHandler(services.NewHealthService(registry, cfg)),
		WS:      websocket.NewHandler(streamer, logger),
		Metrics: otelProviders.PrometheusHTTP,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// Streamed responses outlive a plain JSON endpoint's write window,
		// so the invoke timeout is added on top.
		WriteTimeout: cfg.Server.WriteTimeout + cfg.Server.InvokeTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
		cache:  store,
		server: server,
	}, nil
}

// Run starts the server and blocks until a termination signal arrives or the
// listener fails, then shuts down gracefully.
func (a *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening",
			slog.String("addr", a.server.Addr),
			slog.String("version", config.AppVersion),
			slog.String("cache_mode", a.cfg.Cache.Mode))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		a.logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

// Shutdown stops the server and releases held resources.
func (a *Application) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("stop server: %w", err)
	}
	if err := a.cache.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close cache: %w", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop telemetry: %w", err)
	}

	a.logger.Info("shutdown complete")
	return firstErr
}

// Handler exposes the assembled router, primarily for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Addr returns the configured listen address.
func (a *Application) Addr() string {
	return a.server.Addr
}
