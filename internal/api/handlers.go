package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/cache"
	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/db"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/routing"
	"github.com/rideo/rideo_core/internal/tariff"
)

const dateLayout = "2006-01-02"

// Server exposes the itinerary engine over HTTP. All collaborators are
// injected; the server owns no global state.
type Server struct {
	Planner *routing.Planner
	Tariffs *tariff.Store
	Catalog *catalog.Catalog

	// CacheEnabled turns on the Redis search-result cache
	CacheEnabled bool
	CacheTTL     time.Duration

	// RateLimit, when set, guards the /api group
	RateLimit fiber.Handler

	// DBEnabled includes Postgres in the health check when the catalog is
	// served from it
	DBEnabled bool
}

// RegisterRoutes attaches all handlers to the fiber app
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Get("/health", s.Health)

	api := app.Group("/api")
	if s.RateLimit != nil {
		api.Use(s.RateLimit)
	}
	api.Get("/routes", s.Routes)
	api.Get("/price", s.Price)
	api.Get("/stops/search", s.StopsSearch)
}

// RoutesResponse is the /api/routes payload
type RoutesResponse struct {
	From       string                     `json:"frm"`
	To         string                     `json:"to"`
	Date       string                     `json:"date"`
	Routes     []models.Route             `json:"routes"`
	Mismatches []routing.ScheduleMismatch `json:"schedule_mismatches,omitempty"`
	Debug      RoutesDebug                `json:"debug"`
}

// RoutesDebug carries resolution details for the frontend
type RoutesDebug struct {
	FromIDs []string `json:"from"`
	ToIDs   []string `json:"to"`
	Routes  int      `json:"routes"`
}

// Routes handles GET /api/routes?frm=&to=&date=
func (s *Server) Routes(c *fiber.Ctx) error {
	frm := c.Query("frm")
	to := c.Query("to")
	if frm == "" || to == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameters: frm and to",
		})
	}

	dateStr := c.Query("date")
	travelDate := time.Now().UTC()
	if dateStr != "" {
		var err error
		travelDate, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid date, expected YYYY-MM-DD",
			})
		}
	}

	ctx := c.Context()
	routes, mismatches, err := s.searchWithCache(ctx, frm, to, travelDate)
	if err != nil {
		log.Error().Err(err).Str("from", frm).Str("to", to).Msg("Search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "search failed",
		})
	}

	origins := s.Catalog.FindLocations(frm)
	dests := s.Catalog.FindLocations(to)

	if routes == nil {
		routes = []models.Route{}
	}
	return c.JSON(RoutesResponse{
		From:       frm,
		To:         to,
		Date:       travelDate.Format(dateLayout),
		Routes:     routes,
		Mismatches: mismatches,
		Debug: RoutesDebug{
			FromIDs: stopIDs(origins),
			ToIDs:   stopIDs(dests),
			Routes:  len(routes),
		},
	})
}

// searchWithCache runs the planner behind the Redis result cache with the
// SetNX mutex pattern, so concurrent identical searches compute once
func (s *Server) searchWithCache(ctx context.Context, frm, to string, travelDate time.Time) ([]models.Route, []routing.ScheduleMismatch, error) {
	if !s.CacheEnabled {
		return s.Planner.Search(ctx, frm, to, travelDate)
	}

	key := cache.SearchKey(frm, to, travelDate.Format(dateLayout))
	lockKey := cache.LockKey(key)

	if cached, err := cache.GetRoutes(ctx, key); err == nil && cached != nil {
		return cached, nil, nil
	}

	acquired, err := cache.AcquireLock(ctx, lockKey, 5*time.Second)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to acquire search lock, computing without it")
	} else if !acquired {
		if cached, err := cache.WaitForLock(ctx, key, 3*time.Second); err == nil && cached != nil {
			return cached, nil, nil
		}
		// waiting failed, compute anyway
	}
	defer func() {
		if acquired {
			cache.ReleaseLock(ctx, lockKey)
		}
	}()

	routes, mismatches, err := s.Planner.Search(ctx, frm, to, travelDate)
	if err != nil {
		return nil, nil, err
	}

	ttl := s.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := cache.SetRoutes(ctx, key, routes, ttl); err != nil {
		log.Warn().Err(err).Msg("Failed to cache search result")
	}

	return routes, mismatches, nil
}

// PriceResponse is the /api/price payload
type PriceResponse struct {
	RouteKey string   `json:"route"`
	FromKey  string   `json:"from"`
	ToKey    string   `json:"to"`
	Date     string   `json:"date"`
	Price    *float64 `json:"price"`
	Resolved bool     `json:"resolved"`
}

// Price handles GET /api/price?route=&from=&to=&date=, a standalone
// tariff quote. An unresolvable fare is a valid "unknown" answer.
func (s *Server) Price(c *fiber.Ctx) error {
	routeKey := c.Query("route")
	if routeKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameter: route",
		})
	}

	dateStr := c.Query("date")
	when := time.Now().UTC()
	if dateStr != "" {
		var err error
		when, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid date, expected YYYY-MM-DD",
			})
		}
	}

	resp := PriceResponse{
		RouteKey: routeKey,
		FromKey:  c.Query("from"),
		ToKey:    c.Query("to"),
		Date:     when.Format(dateLayout),
	}
	if price, ok := s.Tariffs.Resolve(routeKey, resp.FromKey, resp.ToKey, when); ok {
		resp.Price = &price
		resp.Resolved = true
	}

	return c.JSON(resp)
}

// StopsSearchResponse is the /api/stops/search payload
type StopsSearchResponse struct {
	Query string        `json:"q"`
	Stops []models.Stop `json:"stops"`
}

// StopsSearch handles GET /api/stops/search?q=
func (s *Server) StopsSearch(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameter: q",
		})
	}

	stops := s.Catalog.FindLocations(q)
	return c.JSON(StopsSearchResponse{Query: q, Stops: stops})
}

// Health handles GET /health
func (s *Server) Health(c *fiber.Ctx) error {
	status := "healthy"
	httpStatus := fiber.StatusOK

	catalogStatus := "ok"
	if !s.Catalog.Loaded() {
		catalogStatus = "not loaded"
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	cacheStatus := "disabled"
	if s.CacheEnabled {
		cacheStatus = "ok"
		if err := cache.HealthCheck(c.Context()); err != nil {
			cacheStatus = err.Error()
		}
	}

	dbStatus := "disabled"
	if s.DBEnabled {
		dbStatus = "ok"
		if err := db.HealthCheck(c.Context()); err != nil {
			dbStatus = err.Error()
			status = "unhealthy"
			httpStatus = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"catalog":  catalogStatus,
			"tariffs":  s.Tariffs.Loaded(),
			"redis":    cacheStatus,
			"database": dbStatus,
		},
	})
}

func stopIDs(stops []models.Stop) []string {
	ids := make([]string, 0, len(stops))
	for _, stop := range stops {
		ids = append(ids, stop.ID)
	}
	return ids
}
