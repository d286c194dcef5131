package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/config"
	"github.com/anime-shed/plant-inspector-go/internal/factory"
	"github.com/anime-shed/plant-inspector-go/internal/insights"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/internal/plants"
	"github.com/anime-shed/plant-inspector-go/internal/repository"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/internal/session"
	"github.com/anime-shed/plant-inspector-go/internal/strategy"
	"github.com/anime-shed/plant-inspector-go/internal/translate"
	"github.com/anime-shed/plant-inspector-go/internal/transport"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	pool       *analyzer.WorkerPool
	strategies *strategy.Registry
	scans      service.ScanService
	sessions   *session.Manager
	translate  *translate.Service
	registry   *prometheus.Registry
	handler    http.Handler
}

// NewContainer builds the dependency graph from cfg. A nil cfg is loaded
// from the environment.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.LoadFromEnv(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	components := factory.NewComponentFactory(cfg)

	// Observability
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(observer.NewMetricsObserver(registry))

	// Image sources
	httpFetcher, err := components.StorageFactory.CreateStorage(factory.HTTPStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create http storage: %w", err)
	}
	blobFetcher, err := components.StorageFactory.CreateStorage(factory.AzureStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob storage: %w", err)
	}
	imageRepository := repository.NewImageRepository(httpFetcher, blobFetcher, validation.NewURLValidator())

	// Analysis
	colorAnalyzer, pool := components.CreateAnalyzer(0)
	strategies := strategy.NewRegistry(colorAnalyzer, analyzer.NewMetricsCalculator(), validation.NewFrameValidator())
	vision := components.CreateVisionClient()
	bridge := components.CreateBridge(vision)

	scans := service.NewScanService(imageRepository, strategies, bridge, events)
	sessions := session.NewManager(session.Config{
		Options:       cfg.AnalysisOptions(),
		RenderOptions: overlay.DefaultOptions(),
		FPS:           cfg.ScanFPS,
		IdleTimeout:   cfg.SessionIdleTimeout,
		MaxSessions:   cfg.MaxSessions,
		Analyzer:      colorAnalyzer,
		Bridge:        bridge,
		Events:        events,
	})

	// Farmer collaborators
	catalog, err := plants.Load()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load plant catalog: %w", err)
	}
	weatherClient := components.CreateWeatherClient()
	placesProvider, err := components.CreatePlacesProvider()
	if err != nil {
		pool.Close()
		return nil, err
	}
	translator, err := components.CreateTranslationService()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create translation service: %w", err)
	}
	insightService := insights.NewService(weatherClient, catalog, vision, cfg.AnalysisTimeout)

	handler := transport.NewHandler(transport.Dependencies{
		Scans:     scans,
		Sessions:  sessions,
		Plants:    catalog,
		Weather:   weatherClient,
		Places:    placesProvider,
		Translate: translator,
		Insights:  insightService,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, cfg)

	logger.WithFields(logrus.Fields{
		"scan_profile":    cfg.ScanProfile,
		"scan_fps":        cfg.ScanFPS,
		"places_provider": placesProvider.Name(),
		"translate_cache": cfg.TranslateCache,
		"diagnosis":       cfg.GeminiAPIKey != "",
	}).Info("Container initialized")

	return &Container{
		config:     cfg,
		pool:       pool,
		strategies: strategies,
		scans:      scans,
		sessions:   sessions,
		translate:  translator,
		registry:   registry,
		handler:    handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Sessions returns the live session registry
func (c *Container) Sessions() *session.Manager {
	return c.sessions
}

// Strategies returns the scan presets
func (c *Container) Strategies() *strategy.Registry {
	return c.strategies
}

// Close tears down every session, the worker pool and the translation cache
func (c *Container) Close() {
	c.sessions.CloseAll()
	c.pool.Close()
	if err := c.translate.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close translation cache")
	}
}
