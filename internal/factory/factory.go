package factory

import (
	"fmt"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/config"
	"github.com/anime-shed/plant-inspector-go/internal/diagnosis"
	"github.com/anime-shed/plant-inspector-go/internal/places"
	"github.com/anime-shed/plant-inspector-go/internal/storage"
	"github.com/anime-shed/plant-inspector-go/internal/translate"
	"github.com/anime-shed/plant-inspector-go/internal/weather"
)

// StorageType represents different types of image storage backends
type StorageType string

const (
	// HTTPStorage fetches images over plain HTTP(S)
	HTTPStorage StorageType = "http"
	// AzureStorage reads images from Azure Blob Storage
	AzureStorage StorageType = "azure"
)

// StorageFactory creates image fetchers
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a fetcher for the given backend
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(storage.HTTPConfig{
			Timeout:  f.cfg.ImageFetchTimeout,
			MaxBytes: f.cfg.MaxImageSize,
		}), nil
	case AzureStorage:
		return storage.NewAzureBlobFetcher(storage.AzureConfig{
			AccountName: f.cfg.AzureStorageAccount,
			AccountKey:  f.cfg.AzureStorageKey,
			MaxBytes:    f.cfg.MaxImageSize,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory builds the configured components of the service
type ComponentFactory struct {
	StorageFactory StorageFactory
	cfg            *config.Config
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		StorageFactory: NewStorageFactory(cfg),
		cfg:            cfg,
	}
}

// CreateAnalyzer starts a worker pool and returns an analyzer using it.
// The caller owns the pool and must Close it.
func (f *ComponentFactory) CreateAnalyzer(workers int) (*analyzer.ColorAnalyzer, *analyzer.WorkerPool) {
	pool := analyzer.NewWorkerPool(workers)
	pool.Start()
	return analyzer.NewColorAnalyzer(pool), pool
}

// CreateVisionClient returns the Gemini client. Without an API key it
// reports diagnosis.ErrNotConfigured on every call.
func (f *ComponentFactory) CreateVisionClient() *diagnosis.GeminiClient {
	return diagnosis.NewGeminiClient(diagnosis.GeminiConfig{
		APIKey:  f.cfg.GeminiAPIKey,
		Model:   f.cfg.GeminiModel,
		Timeout: f.cfg.AnalysisTimeout,
	})
}

// CreateBridge wraps client with the configured timeout
func (f *ComponentFactory) CreateBridge(client diagnosis.VisionClient) *diagnosis.Bridge {
	return diagnosis.NewBridge(client, diagnosis.BridgeConfig{Timeout: f.cfg.AnalysisTimeout})
}

// CreateWeatherClient returns the cached OpenWeatherMap client
func (f *ComponentFactory) CreateWeatherClient() *weather.Client {
	return weather.NewClient(weather.Config{
		APIKey:   f.cfg.WeatherAPIKey,
		Timeout:  f.cfg.RequestTimeout,
		CacheTTL: f.cfg.WeatherCacheTTL,
	})
}

// CreatePlacesProvider returns the configured place search backend
func (f *ComponentFactory) CreatePlacesProvider() (places.Provider, error) {
	return places.New(f.cfg.PlacesProvider, places.Config{Timeout: f.cfg.RequestTimeout})
}

// CreateTranslationService returns the translator with the configured cache
func (f *ComponentFactory) CreateTranslationService() (*translate.Service, error) {
	cache, err := translate.NewCache(f.cfg.TranslateCache, translate.RedisConfig{
		Addr:     f.cfg.RedisAddr,
		Password: f.cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	backend := translate.NewGoogleTranslator(f.cfg.TranslateAPIKey, "", f.cfg.RequestTimeout)
	return translate.NewService(backend, cache), nil
}
