// Package plants is the embedded Karnataka plant encyclopedia.
package plants

import (
	"embed"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
	"gopkg.in/yaml.v3"
)

//go:embed data/plants.yaml
var dataFS embed.FS

// Plant is one encyclopedia entry
type Plant struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	ScientificName   string   `yaml:"scientific_name" json:"scientific_name"`
	Category         string   `yaml:"category" json:"category"`
	Description      string   `yaml:"description" json:"description"`
	FunFact          string   `yaml:"fun_fact" json:"fun_fact"`
	GrowingSeasons   []string `yaml:"growing_seasons" json:"growing_seasons"`
	Sunlight         string   `yaml:"sunlight" json:"sunlight"`
	Watering         string   `yaml:"watering" json:"watering"`
	SoilType         string   `yaml:"soil_type" json:"soil_type"`
	Temperature      string   `yaml:"temperature" json:"temperature"`
	HarvestTime      string   `yaml:"harvest_time" json:"harvest_time"`
	CompanionPlants  []string `yaml:"companion_plants" json:"companion_plants"`
	Pests            []string `yaml:"pests" json:"pests"`
	Diseases         []string `yaml:"diseases" json:"diseases"`
	Benefits         []string `yaml:"benefits" json:"benefits"`
	KarnatakaRegions []string `yaml:"karnataka_regions" json:"karnataka_regions"`
	Difficulty       string   `yaml:"difficulty" json:"difficulty"`
	CommonUses       []string `yaml:"common_uses" json:"common_uses"`
}

// Season names returned by SeasonFor
const (
	SeasonMonsoon = "monsoon"
	SeasonWinter  = "winter"
	SeasonSummer  = "summer"
)

// Catalog is an immutable, read-only plant list
type Catalog struct {
	plants []Plant
	byID   map[string]int
	intn   func(n int) int
}

// Load parses the embedded dataset
func Load() (*Catalog, error) {
	data, err := dataFS.ReadFile("data/plants.yaml")
	if err != nil {
		return nil, fmt.Errorf("read plant dataset: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. IDs must be unique and non-empty.
func Parse(data []byte) (*Catalog, error) {
	var plants []Plant
	if err := yaml.Unmarshal(data, &plants); err != nil {
		return nil, fmt.Errorf("parse plant dataset: %w", err)
	}
	c := &Catalog{
		plants: plants,
		byID:   make(map[string]int, len(plants)),
		intn:   rand.Intn,
	}
	for i, p := range plants {
		if p.ID == "" {
			return nil, fmt.Errorf("plant %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plant id %q", p.ID)
		}
		c.byID[p.ID] = i
	}
	return c, nil
}

// WithRand returns a copy of the catalog whose Random draws indexes from intn
func (c *Catalog) WithRand(intn func(n int) int) *Catalog {
	cp := *c
	cp.intn = intn
	return &cp
}

// All returns every plant in dataset order
func (c *Catalog) All() []Plant {
	return append([]Plant(nil), c.plants...)
}

// Categories lists the distinct categories, sorted
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.plants {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the plants in category; "" or "all" returns everything
func (c *Catalog) ByCategory(category string) []Plant {
	if category == "" || strings.EqualFold(category, "all") {
		return c.All()
	}
	return c.filter(func(p Plant) bool { return strings.EqualFold(p.Category, category) })
}

// ByID looks up one plant
func (c *Catalog) ByID(id string) (Plant, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Plant{}, false
	}
	return c.plants[i], true
}

// Random picks one plant; ok is false for an empty catalog
func (c *Catalog) Random() (Plant, bool) {
	if len(c.plants) == 0 {
		return Plant{}, false
	}
	return c.plants[c.intn(len(c.plants))], true
}

// Search matches query case-insensitively against name, scientific name,
// description and common uses. When nothing matches, plant names within a
// small edit distance of the query are returned instead, closest first.
func (c *Catalog) Search(query string) []Plant {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.All()
	}

	matches := c.filter(func(p Plant) bool {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.ScientificName), q) ||
			strings.Contains(strings.ToLower(p.Description), q) {
			return true
		}
		for _, use := range p.CommonUses {
			if strings.Contains(strings.ToLower(use), q) {
				return true
			}
		}
		return false
	})
	if len(matches) > 0 {
		return matches
	}
	return c.fuzzy(q)
}

// Seasonal returns the plants to grow in month: June to September favours
// monsoon sowings, October to February winter sowings, and in summer every
// plant is returned.
func (c *Catalog) Seasonal(month time.Month) []Plant {
	var keys []string
	switch SeasonFor(month) {
	case SeasonMonsoon:
		keys = []string{"June", "July"}
	case SeasonWinter:
		keys = []string{"October", "November", "February"}
	default:
		return c.All()
	}
	return c.filter(func(p Plant) bool {
		for _, s := range p.GrowingSeasons {
			for _, k := range keys {
				if strings.Contains(s, k) {
					return true
				}
			}
		}
		return false
	})
}

// SeasonFor maps a month to the Karnataka growing season
func SeasonFor(month time.Month) string {
	switch month {
	case time.June, time.July, time.August, time.September:
		return SeasonMonsoon
	case time.October, time.November, time.December, time.January, time.February:
		return SeasonWinter
	default:
		return SeasonSummer
	}
}

func (c *Catalog) filter(keep func(Plant) bool) []Plant {
	out := []Plant{}
	for _, p := range c.plants {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

type scored struct {
	plant Plant
	dist  int
}

func (c *Catalog) fuzzy(q string) []Plant {
	limit := utf8.RuneCountInString(q) / 3
	if limit < 1 {
		limit = 1
	}

	var hits []scored
	for _, p := range c.plants {
		best := -1
		for _, word := range nameWords(p.Name) {
			d := levenshtein.Distance(q, word)
			if best < 0 || d < best {
				best = d
			}
		}
		if best >= 0 && best <= limit {
			hits = append(hits, scored{plant: p, dist: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]Plant, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.plant)
	}
	return out
}

// nameWords is the full lowercased name plus each word in it, so that
// "brinjl" can match "Brinjal (Eggplant)"
func nameWords(name string) []string {
	lower := strings.ToLower(name)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '(' || r == ')' || r == '-' || r == ','
	})
	return append([]string{lower}, words...)
}
