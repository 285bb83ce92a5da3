package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/lib/geo"
	"github.com/odyssey-travel/odyssey/server/internal/lib/mapview"
)

//go:embed data/catalog.json
var catalogJSON []byte

// ErrNotFound is returned when a place id is not in the catalog
var ErrNotFound = errors.New("place not found")

const (
	cellPrecision = 5
	// cellScanRadius is the largest radius a cell and its neighbors always cover
	cellScanRadius = 2000.0
)

// BusinessFeatures are optional facilities of a place
type BusinessFeatures struct {
	Website            string   `json:"website,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	OpeningHours       string   `json:"opening_hours,omitempty"`
	Amenities          []string `json:"amenities,omitempty"`
	IsBusinessFriendly bool     `json:"is_business_friendly,omitempty"`
	ConferenceSpace    bool     `json:"conference_space,omitempty"`
	WifiAvailable      bool     `json:"wifi_available,omitempty"`
}

// Place is a point of interest. Places are immutable once loaded.
type Place struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Rating           float64           `json:"rating"`
	ImageURL         string            `json:"image_url"`
	Description      string            `json:"description"`
	Address          string            `json:"address"`
	Category         string            `json:"category"`
	City             string            `json:"city"`
	Location         geo.Point         `json:"location"`
	SpecialFeatures  []string          `json:"special_features,omitempty"`
	BestTimeToVisit  string            `json:"best_time_to_visit,omitempty"`
	BusinessFeatures *BusinessFeatures `json:"business_features,omitempty"`
}

// IsBusinessFriendly reports the business-friendly flag
func (p Place) IsBusinessFriendly() bool {
	return p.BusinessFeatures != nil && p.BusinessFeatures.IsBusinessFriendly
}

// Pin converts the place to a map pin
func (p Place) Pin() mapview.Pin {
	return mapview.Pin{
		ID:               p.ID,
		Name:             p.Name,
		Category:         p.Category,
		Rating:           p.Rating,
		BusinessFriendly: p.IsBusinessFriendly(),
		Location:         p.Location,
	}
}

// Pins converts places to map pins
func Pins(places []Place) []mapview.Pin {
	pins := make([]mapview.Pin, len(places))
	for i, p := range places {
		pins[i] = p.Pin()
	}
	return pins
}

// Delays simulate the latency of a remote places API
type Delays struct {
	Search           time.Duration `yaml:"search"`
	Details          time.Duration `yaml:"details"`
	BusinessFriendly time.Duration `yaml:"business_friendly"`
	ByCategory       time.Duration `yaml:"by_category"`
}

// DefaultDelays mirrors the latency of the hosted demo
func DefaultDelays() Delays {
	return Delays{
		Search:           600 * time.Millisecond,
		Details:          400 * time.Millisecond,
		BusinessFriendly: 400 * time.Millisecond,
		ByCategory:       300 * time.Millisecond,
	}
}

type document struct {
	PopularDestinations []string `json:"popular_destinations"`
	Places              []Place  `json:"places"`
}

// Catalog is the fixed in-memory place source
type Catalog struct {
	places  []Place
	byID    map[string]int
	cells   map[string][]int
	popular []string
	delays  Delays
	logger  *zap.Logger
}

// Load builds the catalog from the embedded data set
func Load(delays Delays, logger *zap.Logger) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(catalogJSON, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}
	return New(doc.Places, doc.PopularDestinations, delays, logger)
}

// New builds a catalog from places, rejecting duplicate ids and invalid locations
func New(places []Place, popular []string, delays Delays, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Catalog{
		places:  make([]Place, 0, len(places)),
		byID:    make(map[string]int, len(places)),
		cells:   make(map[string][]int),
		popular: append([]string(nil), popular...),
		delays:  delays,
		logger:  logger,
	}
	for _, p := range places {
		if p.ID == "" {
			return nil, fmt.Errorf("place %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate place id %q", p.ID)
		}
		if !p.Location.Valid() {
			return nil, fmt.Errorf("place %q: %w", p.ID, geo.ErrInvalidCoordinate)
		}
		idx := len(c.places)
		c.places = append(c.places, p)
		c.byID[p.ID] = idx
		cell := geo.Geohash(p.Location, cellPrecision)
		c.cells[cell] = append(c.cells[cell], idx)
	}

	logger.Debug("Catalog loaded", zap.Int("places", len(c.places)), zap.Int("cells", len(c.cells)))
	return c, nil
}

// Search returns the places of any catalog city matching query.
// A place matches when the lowercased query contains its city, so "hotels in Ahmedabad"
// finds Ahmedabad while a fragment such as "a" finds nothing.
func (c *Catalog) Search(ctx context.Context, query string) ([]Place, error) {
	if err := wait(ctx, c.delays.Search); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Place{}, nil
	}

	results := []Place{}
	for _, p := range c.places {
		city := strings.ToLower(p.City)
		if city == "" {
			continue
		}
		if strings.Contains(q, city) {
			results = append(results, p)
		}
	}
	return results, nil
}

// Popular returns destination suggestions
func (c *Catalog) Popular(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), c.popular...), nil
}

// Details returns one place
func (c *Catalog) Details(ctx context.Context, id string) (Place, error) {
	if err := wait(ctx, c.delays.Details); err != nil {
		return Place{}, err
	}
	idx, ok := c.byID[id]
	if !ok {
		return Place{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.places[idx], nil
}

// BusinessFriendly returns places flagged as business friendly
func (c *Catalog) BusinessFriendly(ctx context.Context) ([]Place, error) {
	if err := wait(ctx, c.delays.BusinessFriendly); err != nil {
		return nil, err
	}
	return c.filter(Place.IsBusinessFriendly), nil
}

// ByCategory returns places whose category equals category exactly
func (c *Catalog) ByCategory(ctx context.Context, category string) ([]Place, error) {
	if err := wait(ctx, c.delays.ByCategory); err != nil {
		return nil, err
	}
	return c.filter(func(p Place) bool { return p.Category == category }), nil
}

// Categories lists the distinct categories in catalog order
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.places {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Nearby returns places within radiusMeters of center, nearest first
func (c *Catalog) Nearby(ctx context.Context, center geo.Point, radiusMeters float64) ([]Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !center.Valid() {
		return nil, geo.ErrInvalidCoordinate
	}

	candidates := c.candidates(center, radiusMeters)

	type hit struct {
		idx      int
		distance float64
	}
	var hits []hit
	for _, idx := range candidates {
		d := geo.DistanceMeters(center, c.places[idx].Location)
		if d <= radiusMeters {
			hits = append(hits, hit{idx: idx, distance: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	results := make([]Place, len(hits))
	for i, h := range hits {
		results[i] = c.places[h.idx]
	}
	return results, nil
}

func (c *Catalog) candidates(center geo.Point, radiusMeters float64) []int {
	if radiusMeters > cellScanRadius {
		all := make([]int, len(c.places))
		for i := range all {
			all[i] = i
		}
		return all
	}

	cell := geo.Geohash(center, cellPrecision)
	idxs := append([]int(nil), c.cells[cell]...)
	for _, n := range geo.GeohashNeighbors(cell) {
		idxs = append(idxs, c.cells[n]...)
	}
	sort.Ints(idxs)
	return idxs
}

func (c *Catalog) filter(keep func(Place) bool) []Place {
	out := []Place{}
	for _, p := range c.places {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
