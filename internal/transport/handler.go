package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plant-inspector-go/internal/config"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/internal/insights"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/places"
	"github.com/anime-shed/plant-inspector-go/internal/plants"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/internal/session"
	"github.com/anime-shed/plant-inspector-go/internal/weather"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// Version is reported by the health check
const Version = "1.0.0"

// WeatherSource looks up current weather
type WeatherSource interface {
	Current(ctx context.Context, city string) (*weather.Weather, error)
}

// Translator translates UI text with a cache
type Translator interface {
	Translate(ctx context.Context, text, target string) models.TranslateResponse
	Clear(ctx context.Context) error
	CacheSize(ctx context.Context) (int, error)
}

// InsightSource builds crop insights
type InsightSource interface {
	Insights(ctx context.Context, req insights.Request) (*insights.Result, error)
}

// Dependencies are the services the routes call. Nil collaborators leave
// their routes unregistered.
type Dependencies struct {
	Scans     service.ScanService
	Sessions  *session.Manager
	Plants    *plants.Catalog
	Weather   WeatherSource
	Places    places.Provider
	Translate Translator
	Insights  InsightSource
	Metrics   http.Handler
}

// Handler serves the HTTP API
type Handler struct {
	deps Dependencies
	cfg  *config.Config
}

// NewHandler builds the gin engine with every route
func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	h := &Handler{deps: deps, cfg: cfg}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", h.healthCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api/v1")
	if deps.Scans != nil {
		api.POST("/scan", h.scanImage)
		api.POST("/diagnose", h.diagnoseImage)
	}
	if deps.Sessions != nil {
		h.registerSessionRoutes(api.Group("/sessions"))
	}
	h.registerCollaboratorRoutes(api)

	return r
}

func (h *Handler) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "available",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.Sessions != nil {
		body["sessions"] = h.deps.Sessions.Len()
	}
	c.JSON(http.StatusOK, body)
}

// withTimeout bounds the request context by the configured request timeout
func (h *Handler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

// requestLanguage resolves the lang query parameter, falling back to the
// Accept-Language header
func requestLanguage(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return i18n.Normalize(lang)
	}
	return i18n.Normalize(c.GetHeader("Accept-Language"))
}

// Middleware and helper functions

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed with server error")
			return
		}
		entry.Debug("Request completed")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status code derived from err
func fail(c *gin.Context, message string, err error) {
	respondError(c, determineStatusCode(err), message, err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: apperrors.UserMessage(err, message),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
	}
	c.AbortWithStatusJSON(code, resp)
}
