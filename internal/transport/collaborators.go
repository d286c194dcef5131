package transport

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/insights"
	"github.com/anime-shed/plant-inspector-go/internal/places"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func (h *Handler) registerCollaboratorRoutes(api *gin.RouterGroup) {
	if h.deps.Plants != nil {
		api.GET("/plants", h.listPlants)
		api.GET("/plants/categories", h.plantCategories)
		api.GET("/plants/seasonal", h.seasonalPlants)
		api.GET("/plants/random", h.randomPlant)
		api.GET("/plants/:id", h.getPlant)
	}
	if h.deps.Weather != nil {
		api.GET("/weather", h.currentWeather)
	}
	if h.deps.Places != nil {
		api.GET("/places", h.searchPlaces)
	}
	if h.deps.Translate != nil {
		api.POST("/translate", h.translate)
		api.GET("/translate/cache", h.translateCacheSize)
		api.DELETE("/translate/cache", h.clearTranslateCache)
	}
	if h.deps.Insights != nil {
		api.GET("/insights", h.cropInsights)
	}
}

// listPlants filters by ?q= search, or by ?category= when no query is given
func (h *Handler) listPlants(c *gin.Context) {
	if q := c.Query("q"); q != "" {
		c.JSON(http.StatusOK, h.deps.Plants.Search(q))
		return
	}
	c.JSON(http.StatusOK, h.deps.Plants.ByCategory(c.Query("category")))
}

func (h *Handler) plantCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Plants.Categories())
}

func (h *Handler) seasonalPlants(c *gin.Context) {
	month, err := parseMonth(c.Query("month"))
	if err != nil {
		fail(c, "invalid month", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":  month.String(),
		"plants": h.deps.Plants.Seasonal(month),
	})
}

func (h *Handler) randomPlant(c *gin.Context) {
	p, ok := h.deps.Plants.Random()
	if !ok {
		fail(c, "no plants available", apperrors.NewNotFoundError("plant catalog is empty", nil))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) getPlant(c *gin.Context) {
	p, ok := h.deps.Plants.ByID(c.Param("id"))
	if !ok {
		fail(c, "plant not found", apperrors.NewNotFoundError("plant not found", nil).WithDetails(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) currentWeather(c *gin.Context) {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		fail(c, "city is required", apperrors.NewValidationError("city is required", nil))
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	w, err := h.deps.Weather.Current(ctx, city)
	if err != nil {
		fail(c, "weather lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) searchPlaces(c *gin.Context) {
	origin, err := parseOrigin(c)
	if err != nil {
		fail(c, "invalid coordinates", err)
		return
	}
	radius := 0.0
	if raw := c.Query("radius"); raw != "" {
		if radius, err = strconv.ParseFloat(raw, 64); err != nil {
			fail(c, "invalid radius", apperrors.NewValidationError("radius must be a number", err))
			return
		}
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	res, err := h.deps.Places.Search(ctx, c.Query("q"), origin, radius)
	if err != nil {
		fail(c, "place search failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": h.deps.Places.Name(),
		"places":   res,
	})
}

func (h *Handler) translate(c *gin.Context) {
	var req models.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "invalid translation request", apperrors.NewValidationError("invalid request body", err))
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	c.JSON(http.StatusOK, h.deps.Translate.Translate(ctx, req.Text, req.Target))
}

func (h *Handler) translateCacheSize(c *gin.Context) {
	n, err := h.deps.Translate.CacheSize(c.Request.Context())
	if err != nil {
		fail(c, "translation cache unavailable", apperrors.NewInternalError("translation cache unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": n})
}

func (h *Handler) clearTranslateCache(c *gin.Context) {
	if err := h.deps.Translate.Clear(c.Request.Context()); err != nil {
		fail(c, "translation cache unavailable", apperrors.NewInternalError("translation cache unavailable", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) cropInsights(c *gin.Context) {
	month, err := parseMonth(c.Query("month"))
	if err != nil {
		fail(c, "invalid month", err)
		return
	}
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	res, err := h.deps.Insights.Insights(ctx, insights.Request{
		City:     c.Query("city"),
		District: c.Query("district"),
		Month:    month,
		Crop:     c.Query("crop"),
		Language: requestLanguage(c),
	})
	if err != nil {
		fail(c, "insights unavailable", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// parseMonth accepts 1..12 or an English month name; empty means the current month
func parseMonth(raw string) (time.Month, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().Month(), nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > 12 {
			return 0, apperrors.NewValidationError("month must be within 1..12", nil)
		}
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(raw, name) || strings.EqualFold(raw, name[:3]) {
			return m, nil
		}
	}
	return 0, apperrors.NewValidationError("unknown month", nil).WithDetails(raw)
}

func parseOrigin(c *gin.Context) (places.LatLng, error) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return places.LatLng{}, apperrors.NewValidationError("lat must be a number", err)
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return places.LatLng{}, apperrors.NewValidationError("lng must be a number", err)
	}
	return places.LatLng{Lat: lat, Lng: lng}, nil
}
