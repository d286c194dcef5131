// Package insights combines current weather, seasonal crops and AI advice
// for a farmer's city and month.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/plant-inspector-go/internal/diagnosis"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/plants"
	"github.com/anime-shed/plant-inspector-go/internal/weather"
)

// WeatherSource looks up current weather
type WeatherSource interface {
	Current(ctx context.Context, city string) (*weather.Weather, error)
}

// TextGenerator produces free text from a prompt
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Request selects where and when to advise for
type Request struct {
	City     string
	District string
	Month    time.Month
	Crop     string
	Language string
}

// Result is the combined insight
type Result struct {
	City          string           `json:"city"`
	District      string           `json:"district,omitempty"`
	Month         string           `json:"month"`
	Season        string           `json:"season"`
	Weather       *weather.Weather `json:"weather"`
	SuitableCrops []string         `json:"suitable_crops"`
	Advice        string           `json:"advice,omitempty"`
	AdviceError   string           `json:"advice_error,omitempty"`
	Language      string           `json:"language"`
}

// Service builds insights
type Service struct {
	weather WeatherSource
	catalog *plants.Catalog
	advisor TextGenerator
	timeout time.Duration
}

// NewService wires the insight sources; advisor may be nil
func NewService(w WeatherSource, catalog *plants.Catalog, advisor TextGenerator, timeout time.Duration) *Service {
	return &Service{weather: w, catalog: catalog, advisor: advisor, timeout: timeout}
}

// Insights fetches weather and seasonal crops concurrently, then asks the
// advisor for weather-based advice. A weather failure fails the call; an
// advice failure is reported in AdviceError.
func (s *Service) Insights(ctx context.Context, req Request) (*Result, error) {
	req.City = strings.TrimSpace(req.City)
	if req.City == "" {
		return nil, apperrors.NewValidationError("city is required", nil)
	}
	if req.Month < time.January || req.Month > time.December {
		req.Month = time.Now().Month()
	}
	lang := i18n.Normalize(req.Language)

	result := &Result{
		City:     req.City,
		District: req.District,
		Month:    req.Month.String(),
		Season:   plants.SeasonFor(req.Month),
		Language: lang,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := s.weather.Current(gctx, req.City)
		if err != nil {
			return err
		}
		result.Weather = w
		return nil
	})
	g.Go(func() error {
		crops := []string{}
		for _, p := range s.catalog.Seasonal(req.Month) {
			crops = append(crops, p.Name)
		}
		result.SuitableCrops = crops
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.advisor == nil {
		result.AdviceError = i18n.Message(i18n.MsgAnalysisFailed, lang)
		return result, nil
	}

	actx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	advice, err := s.advisor.GenerateText(actx, AdvicePrompt(req, result))
	if err != nil {
		logger.WithError(err).WithField("city", req.City).Warn("Weather advice failed")
		result.AdviceError = adviceError(err, lang)
		return result, nil
	}
	result.Advice = strings.TrimSpace(advice)
	return result, nil
}

// AdvicePrompt builds the advisor prompt from the weather and crop context
func AdvicePrompt(req Request, r *Result) string {
	weatherJSON, _ := json.Marshal(map[string]interface{}{
		"temperature":       r.Weather.Temperature,
		"humidity":          r.Weather.Humidity,
		"description":       r.Weather.Description,
		"rain_last_hour_mm": r.Weather.Rain1h,
	})

	place := r.City
	if r.District != "" {
		place = r.District
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather: %s\n", weatherJSON)
	if len(r.SuitableCrops) > 0 {
		fmt.Fprintf(&sb, "The most suitable crops for %s in %s are: %s.\n", place, r.Month, strings.Join(r.SuitableCrops, ", "))
	} else {
		fmt.Fprintf(&sb, "No suitable crops found for %s in %s.\n", place, r.Month)
	}
	fmt.Fprintf(&sb, "Current city: %s", r.City)
	if req.Crop != "" {
		fmt.Fprintf(&sb, ", User is interested in: %s", req.Crop)
	}
	sb.WriteString("\n")
	sb.WriteString(i18n.Message(i18n.MsgAdviceInstruction, r.Language))
	return sb.String()
}

func adviceError(err error, lang string) string {
	switch {
	case ctxErr(err):
		return i18n.Message(i18n.MsgAnalysisTimeout, lang)
	case isAPIError(err):
		return i18n.Message(i18n.MsgAnalysisFailed, lang)
	default:
		return i18n.Message(i18n.MsgAnalysisNetwork, lang)
	}
}

func ctxErr(err error) bool {
	return apperrors.IsType(err, apperrors.ErrorTypeTimeout) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func isAPIError(err error) bool {
	var apiErr *diagnosis.APIError
	return errors.As(err, &apiErr) || errors.Is(err, diagnosis.ErrNotConfigured)
}
