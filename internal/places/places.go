// Package places finds nearby farming services (nurseries, fertilizer shops,
// mandis) on OpenStreetMap.
package places

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
)

const (
	// EarthRadiusKm is the mean radius used by Haversine
	EarthRadiusKm   = 6371.0
	MaxResults      = 15
	DefaultRadiusKm = 10.0
	MaxRadiusKm     = 50.0
	userAgent       = "PlantInspector/1.0"
)

// Provider kinds accepted by New
const (
	ProviderOverpass  = "overpass"
	ProviderNominatim = "nominatim"
	ProviderFallback  = "fallback"
)

// LatLng is a WGS84 coordinate
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is on the globe
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Place is one search hit
type Place struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km"`
}

// Provider searches for places around an origin
type Provider interface {
	Search(ctx context.Context, query string, origin LatLng, radiusKm float64) ([]Place, error)
	Name() string
}

// Haversine is the great-circle distance between a and b in km
func Haversine(a, b LatLng) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Rank fills in distances, drops places outside radiusKm and returns the
// closest MaxResults in ascending order
func Rank(origin LatLng, places []Place, radiusKm float64) []Place {
	out := make([]Place, 0, len(places))
	for _, p := range places {
		p.DistanceKm = Haversine(origin, LatLng{Lat: p.Lat, Lng: p.Lng})
		if p.DistanceKm <= radiusKm {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

// Validate normalizes search parameters shared by every provider
func Validate(query string, origin LatLng, radiusKm float64) (string, float64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", 0, apperrors.NewValidationError("search query is required", nil)
	}
	if !origin.Valid() {
		return "", 0, apperrors.NewValidationError("invalid coordinates", nil).
			WithDetails(fmt.Sprintf("lat=%f lng=%f", origin.Lat, origin.Lng))
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if radiusKm > MaxRadiusKm {
		radiusKm = MaxRadiusKm
	}
	return query, radiusKm, nil
}

// Fallback tries each provider in order and returns the first non-empty result
type Fallback struct {
	providers []Provider
}

// NewFallback chains providers
func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{providers: providers}
}

func (f *Fallback) Name() string { return ProviderFallback }

// Search returns the first provider's non-empty result. If every provider
// failed the errors are joined; empty answers are not errors.
func (f *Fallback) Search(ctx context.Context, query string, origin LatLng, radiusKm float64) ([]Place, error) {
	var errs []error
	for _, p := range f.providers {
		res, err := p.Search(ctx, query, origin, radiusKm)
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, err
		}
		if err != nil {
			logger.WithError(err).WithField("provider", p.Name()).Warn("Place search failed, trying next provider")
			errs = append(errs, err)
			continue
		}
		if len(res) > 0 {
			return res, nil
		}
	}
	if len(errs) == len(f.providers) && len(errs) > 0 {
		return nil, apperrors.NewNetworkError("place search unavailable", errors.Join(errs...))
	}
	return []Place{}, nil
}

// New builds the provider named by kind
func New(kind string, cfg Config) (Provider, error) {
	switch strings.ToLower(kind) {
	case ProviderOverpass:
		return NewOverpass(cfg), nil
	case ProviderNominatim:
		return NewNominatim(cfg), nil
	case "", ProviderFallback:
		return NewFallback(NewOverpass(cfg), NewNominatim(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown places provider %q", kind)
	}
}
