package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

const DefaultGoogleURL = "https://translation.googleapis.com/language/translate/v2"

// ErrNotConfigured is returned by a Translator without an API key
var ErrNotConfigured = errors.New("translator not configured")

// Translator translates a batch of texts into target
type Translator interface {
	Translate(ctx context.Context, texts []string, target string) ([]string, error)
}

// GoogleTranslator calls the Google Cloud Translation v2 REST API
type GoogleTranslator struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// NewGoogleTranslator creates a translator; an empty endpoint uses the public API
func NewGoogleTranslator(apiKey, endpoint string, timeout time.Duration) *GoogleTranslator {
	if endpoint == "" {
		endpoint = DefaultGoogleURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleTranslator{apiKey: apiKey, endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

func (g *GoogleTranslator) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(map[string]interface{}{
		"q":      texts,
		"target": target,
		"format": "text",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("translate API status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("translate API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate API status %d", resp.StatusCode)
	}
	if len(parsed.Data.Translations) != len(texts) {
		return nil, fmt.Errorf("translate API returned %d translations for %d texts", len(parsed.Data.Translations), len(texts))
	}

	out := make([]string, len(texts))
	for i, t := range parsed.Data.Translations {
		out[i] = t.TranslatedText
	}
	return out, nil
}

// Service caches translations. It never fails: on error the original text
// comes back with ScriptOK false.
type Service struct {
	backend Translator
	cache   Cache
}

// NewService creates a translation service
func NewService(backend Translator, cache Cache) *Service {
	return &Service{backend: backend, cache: cache}
}

// Translate returns text in target, from the cache when possible
func (s *Service) Translate(ctx context.Context, text, target string) models.TranslateResponse {
	target = strings.TrimSpace(target)
	resp := models.TranslateResponse{Text: text, Target: target, ScriptOK: true}
	if text == "" || target == "" || baseLanguage(target) == "en" {
		return resp
	}

	key := CacheKey(text, target)
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		logger.WithError(err).Warn("Translation cache read failed")
	} else if ok {
		resp.Text = cached
		resp.Cached = true
		resp.ScriptOK = InExpectedScript(cached, target)
		return resp
	}

	out, err := s.backend.Translate(ctx, []string{text}, target)
	if err != nil {
		logger.WithError(err).WithField("target", target).Warn("Translation failed, returning original text")
		resp.ScriptOK = false
		return resp
	}

	resp.Text = out[0]
	resp.ScriptOK = InExpectedScript(out[0], target)
	if err := s.cache.Set(ctx, key, out[0]); err != nil {
		logger.WithError(err).Warn("Translation cache write failed")
	}
	return resp
}

// Clear empties the cache
func (s *Service) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// CacheSize is the number of cached translations
func (s *Service) CacheSize(ctx context.Context) (int, error) {
	return s.cache.Len(ctx)
}

// Close releases the cache connection, if it holds one
func (s *Service) Close() error {
	if c, ok := s.cache.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
