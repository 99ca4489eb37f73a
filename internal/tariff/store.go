package tariff

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

// FareSource supplies active-fare documents, typically from the GARS
// register. Implementations should return an empty slice on upstream
// failure only if they want the failure hidden; the store itself degrades
// to an empty snapshot and surfaces the error.
type FareSource interface {
	FetchFares(ctx context.Context) ([]models.FareDocument, error)
}

type directKey struct {
	route string
	from  string
	to    string
}

// Store indexes one immutable fare snapshot and resolves segment prices.
// It is explicitly owned and injected; there is no process-wide instance.
// Load builds the snapshot at most once until Invalidate; concurrent
// loaders block on the same in-flight build and observe its result.
type Store struct {
	mu      sync.RWMutex
	loaded  bool
	direct  map[directKey][]models.TariffRow
	byRoute map[string][]models.TariffRow
}

// NewStore creates an empty, unloaded tariff store
func NewStore() *Store {
	return &Store{
		direct:  make(map[directKey][]models.TariffRow),
		byRoute: make(map[string][]models.TariffRow),
	}
}

// Load fetches the fare snapshot and builds the indexes. A fetch failure
// still installs an empty snapshot so request serving can continue; the
// error is returned for the caller to log.
func (s *Store) Load(ctx context.Context, src FareSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	docs, err := src.FetchFares(ctx)
	if err != nil {
		s.install(nil)
		return fmt.Errorf("fare snapshot unavailable, serving without tariffs: %w", err)
	}

	s.install(docs)
	log.Info().
		Int("routes", len(s.byRoute)).
		Int("direct_pairs", len(s.direct)).
		Msg("Tariff store loaded")
	return nil
}

// LoadDocuments builds the indexes from an already-fetched snapshot
func (s *Store) LoadDocuments(docs []models.FareDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(docs)
}

// Invalidate drops the snapshot; the next Load rebuilds it
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.direct = make(map[directKey][]models.TariffRow)
	s.byRoute = make(map[string][]models.TariffRow)
}

// Loaded reports whether a snapshot (possibly empty) is installed
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// install indexes the snapshot. Caller holds the write lock.
func (s *Store) install(docs []models.FareDocument) {
	direct := make(map[directKey][]models.TariffRow)
	byRoute := make(map[string][]models.TariffRow)

	for _, doc := range docs {
		for _, rec := range doc.Rows {
			if rec.Active != nil && !*rec.Active {
				continue
			}
			if rec.RouteKey == "" || rec.Price == nil {
				continue
			}

			row := models.TariffRow{
				RouteKey:  rec.RouteKey,
				FromKey:   rec.FromKey,
				ToKey:     rec.ToKey,
				Price:     *rec.Price,
				StartDate: parsePeriod(rec.Period),
				Raw:       rec.Raw,
			}

			if row.FromKey != "" && row.ToKey != "" {
				k := directKey{row.RouteKey, row.FromKey, row.ToKey}
				direct[k] = append(direct[k], row)
			}
			byRoute[row.RouteKey] = append(byRoute[row.RouteKey], row)
		}
	}

	for _, rows := range direct {
		sortByStartDateDesc(rows)
	}
	for _, rows := range byRoute {
		sortByStartDateDesc(rows)
	}

	s.direct = direct
	s.byRoute = byRoute
	s.loaded = true
}

// sortByStartDateDesc orders rows most-recently-effective first; rows with
// no start date sort last (treated as the earliest possible date)
func sortByStartDateDesc(rows []models.TariffRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return startOrZero(rows[i]).After(startOrZero(rows[j]))
	})
}

func startOrZero(r models.TariffRow) time.Time {
	if r.StartDate == nil {
		return time.Time{}
	}
	return *r.StartDate
}

// pickByDate selects from rows sorted most-recent-first: the newest dated
// row effective on or before when, else the first undated row, else the
// most recent row overall.
func pickByDate(rows []models.TariffRow, when time.Time) (models.TariffRow, bool) {
	if len(rows) == 0 {
		return models.TariffRow{}, false
	}

	for _, r := range rows {
		if r.StartDate != nil && !r.StartDate.After(when) {
			return r, true
		}
	}
	for _, r := range rows {
		if r.StartDate == nil {
			return r, true
		}
	}
	return rows[0], true
}

// Resolve finds the fare for travelling a route between two points on a
// given date. Fares registered for the opposite direction apply too. When
// no direct pair matches, the route-wide minimum is used. The second
// return is false only when the route has no fare rows at all.
func (s *Store) Resolve(routeKey, fromKey, toKey string, when time.Time) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rows, ok := s.direct[directKey{routeKey, fromKey, toKey}]; ok {
		if r, ok := pickByDate(rows, when); ok {
			return r.Price, true
		}
	}
	if rows, ok := s.direct[directKey{routeKey, toKey, fromKey}]; ok {
		if r, ok := pickByDate(rows, when); ok {
			return r.Price, true
		}
	}

	return s.minRoutePriceLocked(routeKey, when)
}

// MinRoutePrice returns the cheapest fare registered anywhere on a route,
// preferring rows effective on or before when
func (s *Store) MinRoutePrice(routeKey string, when time.Time) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minRoutePriceLocked(routeKey, when)
}

func (s *Store) minRoutePriceLocked(routeKey string, when time.Time) (float64, bool) {
	rows := s.byRoute[routeKey]
	if len(rows) == 0 {
		return 0, false
	}

	min, found := 0.0, false
	for _, r := range rows {
		if r.StartDate != nil && r.StartDate.After(when) {
			continue
		}
		if !found || r.Price < min {
			min, found = r.Price, true
		}
	}
	if found {
		return min, true
	}

	// every row starts in the future; fall back to the cheapest of them
	min = rows[0].Price
	for _, r := range rows[1:] {
		if r.Price < min {
			min = r.Price
		}
	}
	return min, true
}

// parsePeriod extracts the effective-start date from a fare row period
// field. Empty or malformed values mean "always effective".
func parsePeriod(s string) *time.Time {
	t, err := normalize.ParseTimestamp(s)
	if err != nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
