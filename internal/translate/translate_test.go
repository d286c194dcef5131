package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInExpectedScript(t *testing.T) {
	tests := []struct {
		text string
		lang string
		want bool
	}{
		{"ಎಲೆ ರೋಗ", "kn", true},
		{"leaf disease", "kn", false},
		{"पत्ती रोग", "hi", true},
		{"पत्ती रोग", "kn", false},
		{"पान", "mr-IN", true},
		{"anything", "en", true},
		{"anything", "fr", true},
		{"", "kn", true},
		{"Tomato ಟೊಮೆಟೊ", "kn_IN", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InExpectedScript(tt.text, tt.lang), "%q in %s", tt.text, tt.lang)
	}
}

type fakeTranslator struct {
	out   string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(_ context.Context, texts []string, _ string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []string{f.out}, nil
}

func newMemory(t *testing.T) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(8)
	require.NoError(t, err)
	return c
}

func TestService_CachesTranslations(t *testing.T) {
	backend := &fakeTranslator{out: "ಟೊಮೆಟೊ"}
	svc := NewService(backend, newMemory(t))
	ctx := context.Background()

	first := svc.Translate(ctx, "Tomato", "kn")
	assert.Equal(t, "ಟೊಮೆಟೊ", first.Text)
	assert.False(t, first.Cached)
	assert.True(t, first.ScriptOK)

	second := svc.Translate(ctx, "Tomato", "kn")
	assert.Equal(t, "ಟೊಮೆಟೊ", second.Text)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, backend.calls)

	n, err := svc.CacheSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, svc.Clear(ctx))
	n, _ = svc.CacheSize(ctx)
	assert.Equal(t, 0, n)
}

func TestService_ErrorReturnsOriginal(t *testing.T) {
	backend := &fakeTranslator{err: errors.New("quota exceeded")}
	cache := newMemory(t)
	svc := NewService(backend, cache)

	resp := svc.Translate(context.Background(), "Tomato", "hi")
	assert.Equal(t, "Tomato", resp.Text)
	assert.False(t, resp.ScriptOK)

	n, _ := cache.Len(context.Background())
	assert.Equal(t, 0, n)
}

func TestService_WrongScript(t *testing.T) {
	svc := NewService(&fakeTranslator{out: "Tomato"}, newMemory(t))
	resp := svc.Translate(context.Background(), "Tomato", "kn")
	assert.False(t, resp.ScriptOK)
}

func TestService_SkipsEnglishAndEmpty(t *testing.T) {
	backend := &fakeTranslator{out: "x"}
	svc := NewService(backend, newMemory(t))

	assert.Equal(t, "Tomato", svc.Translate(context.Background(), "Tomato", "en").Text)
	assert.Equal(t, "", svc.Translate(context.Background(), "", "kn").Text)
	assert.Equal(t, "Tomato", svc.Translate(context.Background(), "Tomato", "").Text)
	assert.Equal(t, 0, backend.calls)
}

func TestGoogleTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		var body struct {
			Q      []string `json:"q"`
			Target string   `json:"target"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"Leaf"}, body.Q)
		assert.Equal(t, "hi", body.Target)
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"पत्ती"}]}}`))
	}))
	defer srv.Close()

	out, err := NewGoogleTranslator("secret", srv.URL, 0).Translate(context.Background(), []string{"Leaf"}, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"पत्ती"}, out)
}

func TestGoogleTranslator_Errors(t *testing.T) {
	_, err := NewGoogleTranslator("", "", 0).Translate(context.Background(), []string{"x"}, "kn")
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err = NewGoogleTranslator("bad", srv.URL, 0).Translate(context.Background(), []string{"x"}, "kn")
	assert.ErrorContains(t, err, "API key not valid")
}

func TestNewCache(t *testing.T) {
	c, err := NewCache("memory", RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = NewCache("memcached", RedisConfig{})
	assert.Error(t, err)
}

// Requires a Redis server at REDIS_ADDR (default localhost:6379)
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	cache, err := NewRedisCache(RedisConfig{Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Clear(ctx))

	_, ok, err := cache.Get(ctx, "Leaf::kn")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "Leaf::kn", "ಎಲೆ"))
	v, ok, err := cache.Get(ctx, "Leaf::kn")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ಎಲೆ", v)

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, cache.Clear(ctx))
	n, _ = cache.Len(ctx)
	assert.Equal(t, 0, n)
}
