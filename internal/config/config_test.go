package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("expected 0.0.0.0:8080, got %s", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.ScanProfile != "fixed" || cfg.ScanFPS != 30 || cfg.ScanSensitivity != analyzer.DefaultSensitivity {
		t.Errorf("unexpected scan defaults: %+v", cfg)
	}
	if cfg.PlacesProvider != "fallback" || cfg.TranslateCache != "memory" {
		t.Errorf("unexpected collaborator defaults: %q %q", cfg.PlacesProvider, cfg.TranslateCache)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ANALYSIS_TIMEOUT", "45s")
	t.Setenv("SCAN_PROFILE", "Scaled")
	t.Setenv("SCAN_SENSITIVITY", "40")
	t.Setenv("SESSION_IDLE_TIMEOUT", "2m")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("TRANSLATE_CACHE", "redis")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.AnalysisTimeout != 45*time.Second {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.SessionIdleTimeout != 2*time.Minute || cfg.GeminiAPIKey != "g-key" || cfg.TranslateCache != "redis" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	opts := cfg.AnalysisOptions()
	if opts.Profile != analyzer.ProfileScaled || opts.Sensitivity != 40 {
		t.Errorf("expected scaled/40 options, got %s/%d", opts.Profile, opts.Sensitivity)
	}
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantcare.yaml")
	if err := os.WriteFile(path, []byte("port: \"7070\"\nscan_fps: 10\nplaces_provider: nominatim\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SCAN_FPS", "15")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("expected port from file, got %s", cfg.Port)
	}
	if cfg.ScanFPS != 15 {
		t.Errorf("expected env to win over file, got %d", cfg.ScanFPS)
	}
	if cfg.PlacesProvider != "nominatim" {
		t.Errorf("expected nominatim, got %s", cfg.PlacesProvider)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "99999"},
		{"PORT", "http"},
		{"MAX_REQUEST_BODY_SIZE", "0"},
		{"SCAN_PROFILE", "aggressive"},
		{"SCAN_SENSITIVITY", "150"},
		{"SCAN_FPS", "0"},
		{"PLACES_PROVIDER", "google"},
		{"TRANSLATE_CACHE", "memcached"},
		{"LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
