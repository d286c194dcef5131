package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/places"
	"github.com/anime-shed/plant-inspector-go/internal/translate"
)

// ConfigFileEnv names an optional YAML file read before the environment
const ConfigFileEnv = "PLANTCARE_CONFIG"

type Config struct {
	Host               string
	Port               string
	LogLevel           string
	LogFormat          string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	MaxImageSize       int64

	ScanProfile        string
	ScanSensitivity    int
	ScanFPS            int
	SessionIdleTimeout time.Duration
	MaxSessions        int

	GeminiAPIKey string
	GeminiModel  string

	WeatherAPIKey   string
	WeatherCacheTTL time.Duration

	PlacesProvider string

	TranslateAPIKey string
	TranslateCache  string
	RedisAddr       string
	RedisPassword   string

	AzureStorageAccount string
	AzureStorageKey     string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AnalysisOptions is the preset selected by SCAN_PROFILE and SCAN_SENSITIVITY
func (c *Config) AnalysisOptions() analyzer.AnalysisOptions {
	opts := analyzer.DefaultOptions()
	if c.ScanProfile == string(analyzer.ProfileScaled) {
		opts = opts.WithProfile(analyzer.ProfileScaled)
	}
	return opts.WithSensitivity(c.ScanSensitivity)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("image_fetch_timeout", 15*time.Second)
	v.SetDefault("analysis_timeout", 20*time.Second)
	v.SetDefault("max_request_body_size", 10*1024*1024) // 10MB
	v.SetDefault("max_image_size", 10*1024*1024)

	v.SetDefault("scan_profile", string(analyzer.ProfileFixed))
	v.SetDefault("scan_sensitivity", analyzer.DefaultSensitivity)
	v.SetDefault("scan_fps", 30)
	v.SetDefault("session_idle_timeout", 10*time.Minute)
	v.SetDefault("max_sessions", 100)

	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("weather_cache_ttl", 10*time.Minute)
	v.SetDefault("places_provider", places.ProviderFallback)
	v.SetDefault("translate_cache", translate.CacheMemory)
	v.SetDefault("redis_addr", "localhost:6379")
}

// LoadFromEnv reads defaults, then the optional PLANTCARE_CONFIG file, then
// environment variables, and validates the result.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString(strings.ToLower(ConfigFileEnv))); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Host:               v.GetString("host"),
		Port:               v.GetString("port"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		RequestTimeout:     v.GetDuration("request_timeout"),
		ImageFetchTimeout:  v.GetDuration("image_fetch_timeout"),
		AnalysisTimeout:    v.GetDuration("analysis_timeout"),
		MaxRequestBodySize: v.GetInt64("max_request_body_size"),
		MaxImageSize:       v.GetInt64("max_image_size"),

		ScanProfile:        strings.ToLower(strings.TrimSpace(v.GetString("scan_profile"))),
		ScanSensitivity:    v.GetInt("scan_sensitivity"),
		ScanFPS:            v.GetInt("scan_fps"),
		SessionIdleTimeout: v.GetDuration("session_idle_timeout"),
		MaxSessions:        v.GetInt("max_sessions"),

		GeminiAPIKey: v.GetString("gemini_api_key"),
		GeminiModel:  v.GetString("gemini_model"),

		WeatherAPIKey:   v.GetString("weather_api_key"),
		WeatherCacheTTL: v.GetDuration("weather_cache_ttl"),

		PlacesProvider: strings.ToLower(strings.TrimSpace(v.GetString("places_provider"))),

		TranslateAPIKey: v.GetString("translate_api_key"),
		TranslateCache:  strings.ToLower(strings.TrimSpace(v.GetString("translate_cache"))),
		RedisAddr:       v.GetString("redis_addr"),
		RedisPassword:   v.GetString("redis_password"),

		AzureStorageAccount: v.GetString("azure_storage_account"),
		AzureStorageKey:     v.GetString("azure_storage_key"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be > 0 (got %d)", c.MaxImageSize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if c.ScanProfile != string(analyzer.ProfileFixed) && c.ScanProfile != string(analyzer.ProfileScaled) {
		return fmt.Errorf("SCAN_PROFILE must be fixed or scaled (got %q)", c.ScanProfile)
	}
	if c.ScanSensitivity < 0 || c.ScanSensitivity > 100 {
		return fmt.Errorf("SCAN_SENSITIVITY must be within 0..100 (got %d)", c.ScanSensitivity)
	}
	if c.ScanFPS < 1 || c.ScanFPS > 60 {
		return fmt.Errorf("SCAN_FPS must be within 1..60 (got %d)", c.ScanFPS)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be > 0 (got %s)", c.SessionIdleTimeout)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text (got %q)", c.LogFormat)
	}
	switch c.PlacesProvider {
	case places.ProviderOverpass, places.ProviderNominatim, places.ProviderFallback:
	default:
		return fmt.Errorf("PLACES_PROVIDER must be overpass, nominatim or fallback (got %q)", c.PlacesProvider)
	}
	switch c.TranslateCache {
	case translate.CacheMemory, translate.CacheRedis:
	default:
		return fmt.Errorf("TRANSLATE_CACHE must be memory or redis (got %q)", c.TranslateCache)
	}
	return nil
}
