package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

const (
	DefaultOverpassURL  = "https://overpass-api.de/api/interpreter"
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// nominatimBoxDeg is the half-width of the Nominatim viewbox in degrees
	nominatimBoxDeg = 0.5
	nominatimLimit  = 20
)

// Config holds backend endpoints
type Config struct {
	OverpassURL  string
	NominatimURL string
	Timeout      time.Duration
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Overpass searches OSM nodes, ways and relations by name around the origin
type Overpass struct {
	endpoint string
	http     *http.Client
}

// NewOverpass creates an Overpass provider
func NewOverpass(cfg Config) *Overpass {
	endpoint := cfg.OverpassURL
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	return &Overpass{endpoint: endpoint, http: httpClient(cfg.Timeout)}
}

func (o *Overpass) Name() string { return ProviderOverpass }

func (o *Overpass) Search(ctx context.Context, query string, origin LatLng, radiusKm float64) ([]Place, error) {
	query, radiusKm, err := Validate(query, origin, radiusKm)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("data", OverpassQuery(query, origin, radiusKm))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create overpass request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	var raw struct {
		Elements []struct {
			Type   string            `json:"type"`
			ID     int64             `json:"id"`
			Lat    float64           `json:"lat"`
			Lon    float64           `json:"lon"`
			Center *osmPoint         `json:"center"`
			Tags   map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := doJSON(o.http, req, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw.Elements))
	for _, el := range raw.Elements {
		lat, lon := el.Lat, el.Lon
		if el.Center != nil {
			lat, lon = el.Center.Lat, el.Center.Lon
		}
		if lat == 0 && lon == 0 {
			continue
		}
		name := el.Tags["name"]
		if name == "" {
			name = query
		}
		places = append(places, Place{
			ID:      fmt.Sprintf("%s/%d", el.Type, el.ID),
			Name:    name,
			Address: formatAddress(el.Tags, lat, lon),
			Lat:     lat,
			Lng:     lon,
		})
	}
	return Rank(origin, places, radiusKm), nil
}

type osmPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OverpassQuery builds a case-insensitive name search within radiusKm
func OverpassQuery(query string, origin LatLng, radiusKm float64) string {
	q := sanitize(query)
	around := fmt.Sprintf("(around:%d,%f,%f)", int(radiusKm*1000), origin.Lat, origin.Lng)
	var sb strings.Builder
	sb.WriteString("[out:json][timeout:25];\n(\n")
	for _, kind := range []string{"node", "way", "relation"} {
		fmt.Fprintf(&sb, "  %s[\"name\"~\"%s\",i]%s;\n", kind, q, around)
	}
	sb.WriteString(");\nout center;")
	return sb.String()
}

// sanitize keeps letters, digits, spaces and hyphens so user input cannot
// break out of the Overpass string literal or regex
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == ' ' || r == '-' {
			return r
		}
		return -1
	}, s)
}

func formatAddress(tags map[string]string, lat, lon float64) string {
	var parts []string
	for _, k := range []string{"addr:housenumber", "addr:street", "addr:city", "addr:postcode"} {
		if v := tags[k]; v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Lat: %.4f, Lon: %.4f", lat, lon)
}

// Nominatim does a bounded free-text search in a box around the origin
type Nominatim struct {
	endpoint string
	http     *http.Client
}

// NewNominatim creates a Nominatim provider
func NewNominatim(cfg Config) *Nominatim {
	endpoint := cfg.NominatimURL
	if endpoint == "" {
		endpoint = DefaultNominatimURL
	}
	return &Nominatim{endpoint: strings.TrimRight(endpoint, "/"), http: httpClient(cfg.Timeout)}
}

func (n *Nominatim) Name() string { return ProviderNominatim }

func (n *Nominatim) Search(ctx context.Context, query string, origin LatLng, radiusKm float64) ([]Place, error) {
	query, radiusKm, err := Validate(query, origin, radiusKm)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("bounded", "1")
	q.Set("limit", strconv.Itoa(nominatimLimit))
	q.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f",
		origin.Lng-nominatimBoxDeg, origin.Lat-nominatimBoxDeg,
		origin.Lng+nominatimBoxDeg, origin.Lat+nominatimBoxDeg))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create nominatim request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	var raw []struct {
		PlaceID     int64  `json:"place_id"`
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := doJSON(n.http, req, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		name, _, _ := strings.Cut(r.DisplayName, ",")
		places = append(places, Place{
			ID:      strconv.FormatInt(r.PlaceID, 10),
			Name:    strings.TrimSpace(name),
			Address: r.DisplayName,
			Lat:     lat,
			Lng:     lon,
		})
	}
	return Rank(origin, places, radiusKm), nil
}

func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return apperrors.NewTimeoutError("place search timed out", err)
		}
		return apperrors.NewNetworkError("failed to reach place search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewNetworkError(
			fmt.Sprintf("place search returned status %d", resp.StatusCode), nil,
		).WithDetails(strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewProcessingError("invalid place search response", err)
	}
	return nil
}
