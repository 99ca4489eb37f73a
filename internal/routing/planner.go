package routing

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/graph"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/sources"
	"github.com/rideo/rideo_core/internal/tariff"
)

// Config holds the planner's tunables
type Config struct {
	MaxLegs       int
	HubCities     []string
	SearchTimeout time.Duration
	FetchTimeout  time.Duration
}

// LoadConfigFromEnv loads planner configuration from environment variables
func LoadConfigFromEnv() Config {
	maxLegs, _ := strconv.Atoi(getEnv("RIDEO_MAX_LEGS", "10"))
	searchTimeout, _ := time.ParseDuration(getEnv("RIDEO_SEARCH_TIMEOUT", "10s"))
	fetchTimeout, _ := time.ParseDuration(getEnv("RIDEO_FETCH_TIMEOUT", "40s"))

	var hubs []string
	for _, h := range strings.Split(getEnv("RIDEO_HUB_CITIES", "Якутск,Нижний Бестях"), ",") {
		if h = strings.TrimSpace(h); h != "" {
			hubs = append(hubs, h)
		}
	}

	return Config{
		MaxLegs:       maxLegs,
		HubCities:     hubs,
		SearchTimeout: searchTimeout,
		FetchTimeout:  fetchTimeout,
	}
}

// Planner is the end-to-end itinerary engine: it resolves the query
// endpoints, merges catalog and remote segments with bridge edges, runs
// the path search and reduces the enumeration to a labeled route list.
// One Planner serves concurrent requests; per-request state never escapes
// Search.
type Planner struct {
	catalog  *catalog.Catalog
	tariffs  *tariff.Store
	base     []models.Segment
	fetchers []sources.SegmentFetcher
	cfg      Config
}

// NewPlanner wires a planner from its collaborators. base is the segment
// catalog loaded at startup; fetchers contribute per-request segments from
// remote providers.
func NewPlanner(cat *catalog.Catalog, tariffs *tariff.Store, base []models.Segment, fetchers []sources.SegmentFetcher, cfg Config) *Planner {
	if cfg.MaxLegs <= 0 {
		cfg.MaxLegs = DefaultMaxLegs
	}
	return &Planner{
		catalog:  cat,
		tariffs:  tariffs,
		base:     base,
		fetchers: fetchers,
		cfg:      cfg,
	}
}

// Search plans itineraries between two free-text locations on a travel
// date. An empty result is a valid answer, not an error; errors are
// reserved for cancellation.
func (p *Planner) Search(ctx context.Context, originQuery, destQuery string, travelDate time.Time) ([]models.Route, []ScheduleMismatch, error) {
	origins := p.catalog.FindLocations(originQuery)
	dests := p.catalog.FindLocations(destQuery)
	if len(origins) == 0 || len(dests) == 0 {
		return nil, nil, nil
	}

	segments := append([]models.Segment(nil), p.base...)

	results := sources.FetchAll(ctx, p.fetchers, sources.Query{
		Origin:      originQuery,
		Destination: destQuery,
		Date:        travelDate,
	}, p.cfg.FetchTimeout)
	for _, r := range results {
		segments = append(segments, r.Segments...)
	}

	hubs := p.hubCities(originQuery, destQuery, origins, dests)
	segments = append(segments, graph.BridgeEdges(p.catalog, hubs)...)

	adj := graph.Build(segments)

	searchCtx := ctx
	if p.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, p.cfg.SearchTimeout)
		defer cancel()
	}

	paths, err := FindPaths(searchCtx, adj, stopIDs(origins), stopIDs(dests), travelDate, p.cfg.MaxLegs)
	if err != nil && len(paths) == 0 {
		return nil, nil, err
	}
	if err != nil {
		log.Warn().Err(err).Int("paths", len(paths)).Msg("Path search cut short, selecting from partial enumeration")
	}

	assembler := &Assembler{Catalog: p.catalog, Tariffs: p.tariffs}
	raw := make([]models.Route, 0, len(paths))
	for _, path := range paths {
		raw = append(raw, assembler.Assemble(path, travelDate))
	}

	routes, mismatches := Select(raw)

	log.Debug().
		Str("from", originQuery).
		Str("to", destQuery).
		Int("paths", len(paths)).
		Int("routes", len(routes)).
		Msg("Search completed")

	return routes, mismatches, nil
}

// hubCities collects the bridge hub set for a request: the configured
// hubs, the raw queries and the cities of every candidate endpoint
func (p *Planner) hubCities(originQuery, destQuery string, origins, dests []models.Stop) []string {
	hubs := append([]string(nil), p.cfg.HubCities...)
	hubs = append(hubs, originQuery, destQuery)
	for _, s := range origins {
		if s.City != "" {
			hubs = append(hubs, s.City)
		}
	}
	for _, s := range dests {
		if s.City != "" {
			hubs = append(hubs, s.City)
		}
	}
	return hubs
}

func stopIDs(stops []models.Stop) []string {
	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.ID)
	}
	return ids
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
