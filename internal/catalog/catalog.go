package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

// StopSource supplies location records for the catalog
type StopSource interface {
	Name() string
	FetchStops(ctx context.Context) ([]models.Stop, error)
}

// Catalog holds the read-only stop catalog for the process. Load runs at
// most once until the catalog is reset; concurrent loaders block on the
// same in-flight load. The read path takes only a read lock.
type Catalog struct {
	mu     sync.RWMutex
	loaded bool
	stops  []models.Stop
	byID   map[string]models.Stop
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]models.Stop)}
}

// Load populates the catalog from a base source plus optional extras. A
// base failure aborts the load (the process cannot serve without it);
// extra sources degrade to an empty contribution.
func (c *Catalog) Load(ctx context.Context, base StopSource, extras ...StopSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	stops, err := base.FetchStops(ctx)
	if err != nil {
		return fmt.Errorf("base stop catalog %s failed to load: %w", base.Name(), err)
	}

	for _, src := range extras {
		extra, err := src.FetchStops(ctx)
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("Stop source unavailable, continuing without it")
			continue
		}
		stops = append(stops, extra...)
	}

	byID := make(map[string]models.Stop, len(stops))
	for _, s := range stops {
		byID[s.ID] = s
	}

	c.stops = stops
	c.byID = byID
	c.loaded = true

	log.Info().Int("stops", len(stops)).Msg("Stop catalog loaded")
	return nil
}

// LoadStops installs a prepared stop list, bypassing sources
func (c *Catalog) LoadStops(stops []models.Stop) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := make(map[string]models.Stop, len(stops))
	for _, s := range stops {
		byID[s.ID] = s
	}
	c.stops = stops
	c.byID = byID
	c.loaded = true
}

// Loaded reports whether the catalog has been populated
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Stop returns a catalogued stop by identifier
func (c *Catalog) Stop(id string) (models.Stop, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// Stops returns the full catalog
func (c *Catalog) Stops() []models.Stop {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stops
}

// FindLocations resolves a free-text query to candidate locations by
// substring match on normalized stop name or city. A query that matches
// nothing materializes a virtual city-level location; the identifier is
// derived from the normalized name, so repeated lookups for the same text
// return the same identity.
func (c *Catalog) FindLocations(query string) []models.Stop {
	q := normalize.Name(query)
	if q == "" {
		return nil
	}

	c.mu.RLock()
	var matches []models.Stop
	for _, s := range c.stops {
		if strings.Contains(normalize.Name(s.Name), q) || strings.Contains(normalize.Name(s.City), q) {
			matches = append(matches, s)
		}
	}
	c.mu.RUnlock()

	if len(matches) > 0 {
		return matches
	}

	trimmed := strings.TrimSpace(query)
	return []models.Stop{{
		ID:   normalize.CityID(query),
		Name: trimmed,
		City: trimmed,
	}}
}

// StopsInCity returns catalogued stops whose city matches the given name
// after normalization
func (c *Catalog) StopsInCity(city string) []models.Stop {
	want := normalize.Name(city)
	if want == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Stop
	for _, s := range c.stops {
		if normalize.Name(s.City) == want {
			out = append(out, s)
		}
	}
	return out
}

// DisplayName returns the catalogued name for a location, falling back to
// the provided name and finally to the identifier itself
func (c *Catalog) DisplayName(id, fallback string) string {
	if s, ok := c.Stop(id); ok && s.Name != "" {
		return s.Name
	}
	if fallback != "" {
		return fallback
	}
	return id
}
