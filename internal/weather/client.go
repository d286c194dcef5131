// Package weather fetches current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
)

const (
	DefaultBaseURL   = "https://api.openweathermap.org"
	DefaultCacheTTL  = 10 * time.Minute
	DefaultCacheSize = 256
)

// Weather is the current weather for a city
type Weather struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Rain1h      float64   `json:"rain"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	IconURL     string    `json:"icon_url,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Config configures a Client
type Config struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

// Client looks up weather by city name with an expiring cache
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   *expirable.LRU[string, *Weather]
}

// NewClient creates a client; zero config values take defaults
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   expirable.NewLRU[string, *Weather](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Current returns the weather for city, from cache when fresh
func (c *Client) Current(ctx context.Context, city string) (*Weather, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, apperrors.NewValidationError("city is required", nil)
	}
	if c.apiKey == "" {
		return nil, apperrors.NewInternalError("weather service is not configured", nil)
	}

	key := strings.ToLower(city)
	if w, ok := c.cache.Get(key); ok {
		return w, nil
	}

	w, err := c.fetch(ctx, city)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, w)
	return w, nil
}

func (c *Client) fetch(ctx context.Context, city string) (*Weather, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	endpoint := c.baseURL + "/data/2.5/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create weather request", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("weather request timed out", err)
		}
		return nil, apperrors.NewNetworkError("failed to reach weather service", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewNotFoundError("city not found", nil).WithDetails(city)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("weather service returned status %d", resp.StatusCode), nil,
		).WithDetails(strings.TrimSpace(string(body)))
	}

	var raw owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperrors.NewProcessingError("invalid weather response", err)
	}

	w := &Weather{
		City:        raw.Name,
		Temperature: raw.Main.Temp,
		Humidity:    raw.Main.Humidity,
		Rain1h:      raw.Rain.OneHour,
		FetchedAt:   time.Now(),
	}
	if w.City == "" {
		w.City = city
	}
	if len(raw.Weather) > 0 {
		w.Description = raw.Weather[0].Description
		w.Icon = raw.Weather[0].Icon
		w.IconURL = fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", w.Icon)
	}

	logger.WithFields(map[string]interface{}{
		"city":     w.City,
		"duration": time.Since(start),
	}).Debug("Weather fetched")
	return w, nil
}

type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}
