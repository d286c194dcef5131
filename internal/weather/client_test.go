package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

const mysoreJSON = `{
  "name": "Mysore",
  "main": {"temp": 27.4, "humidity": 71},
  "weather": [{"description": "light rain", "icon": "10d"}],
  "rain": {"1h": 0.6}
}`

func TestClient_Current(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Mysore", r.URL.Query().Get("q"))
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(mysoreJSON))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	w, err := c.Current(context.Background(), " Mysore ")
	require.NoError(t, err)

	assert.Equal(t, "Mysore", w.City)
	assert.InDelta(t, 27.4, w.Temperature, 1e-9)
	assert.Equal(t, 71, w.Humidity)
	assert.InDelta(t, 0.6, w.Rain1h, 1e-9)
	assert.Equal(t, "light rain", w.Description)
	assert.Equal(t, "https://openweathermap.org/img/wn/10d@2x.png", w.IconURL)

	// Cached, case-insensitively
	_, err = c.Current(context.Background(), "mysore")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_CacheExpires(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(mysoreJSON))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, CacheTTL: 20 * time.Millisecond})
	_, err := c.Current(context.Background(), "Mysore")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = c.Current(context.Background(), "Mysore")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Atlantis":
			http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
		case "Broken":
			_, _ = w.Write([]byte("{"))
		default:
			http.Error(w, "down", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})

	tests := []struct {
		city string
		typ  apperrors.ErrorType
	}{
		{"", apperrors.ErrorTypeValidation},
		{"Atlantis", apperrors.ErrorTypeNotFound},
		{"Broken", apperrors.ErrorTypeProcessing},
		{"Hubli", apperrors.ErrorTypeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			_, err := c.Current(context.Background(), tt.city)
			assert.True(t, apperrors.IsType(err, tt.typ), "got %v", err)
		})
	}

	_, err := NewClient(Config{}).Current(context.Background(), "Mysore")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}
