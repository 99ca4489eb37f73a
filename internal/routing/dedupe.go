package routing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
)

// ScheduleMismatch flags an equivalence class whose members computed
// different departure sequences: the same logical path yielded more than
// one schedule. A data-quality signal, not an error.
type ScheduleMismatch struct {
	Signature  string     `json:"signature"`
	Departures [][]string `json:"departures"`
}

// Signature renders the ordered leg identity of a route: per leg the
// endpoints, mode, operator and source. Routes sharing a signature are the
// same itinerary regardless of the exact computed times.
func Signature(r models.Route) string {
	parts := make([]string, 0, len(r.Segments))
	for _, sg := range r.Segments {
		parts = append(parts, fmt.Sprintf("%s>%s|%s|%s|%s", sg.FromID, sg.ToID, sg.Type, sg.Operator, sg.Source))
	}
	return strings.Join(parts, ";")
}

// Select deduplicates the raw route set, labels the winners and orders the
// final list. Within an equivalence class at most two representatives
// survive: the cheapest member and, when different, the fastest. At most
// one route earns each label. The whole pass is deterministic: group order
// follows first appearance and ties go to the earlier route, so running it
// again on the same input reproduces the same output.
func Select(routes []models.Route) ([]models.Route, []ScheduleMismatch) {
	if len(routes) == 0 {
		return nil, nil
	}

	groups := make(map[string][]models.Route)
	var order []string
	for _, r := range routes {
		sig := Signature(r)
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], r)
	}

	var mismatches []ScheduleMismatch
	var survivors []models.Route

	for _, sig := range order {
		group := groups[sig]

		if m, ok := departureMismatch(sig, group); ok {
			log.Warn().
				Str("signature", sig).
				Int("variants", len(m.Departures)).
				Msg("Equivalent paths computed different schedules")
			mismatches = append(mismatches, m)
		}

		cheapest, fastest := 0, 0
		for i, r := range group {
			if priceOrInf(r) < priceOrInf(group[cheapest]) {
				cheapest = i
			}
			if r.TotalTimeHours < group[fastest].TotalTimeHours {
				fastest = i
			}
		}

		survivors = append(survivors, group[cheapest])
		if fastest != cheapest {
			survivors = append(survivors, group[fastest])
		}
	}

	labelRoutes(survivors)
	sortRoutes(survivors)
	return survivors, mismatches
}

// departureMismatch reports whether group members disagree on the computed
// departure sequence
func departureMismatch(sig string, group []models.Route) (ScheduleMismatch, bool) {
	if len(group) <= 1 {
		return ScheduleMismatch{}, false
	}

	seen := make(map[string][]string)
	var variants [][]string
	for _, r := range group {
		deps := make([]string, 0, len(r.Segments))
		for _, sg := range r.Segments {
			deps = append(deps, sg.Departure.Format("2006-01-02T15:04:05"))
		}
		key := strings.Join(deps, "->")
		if _, ok := seen[key]; !ok {
			seen[key] = deps
			variants = append(variants, deps)
		}
	}

	if len(variants) <= 1 {
		return ScheduleMismatch{}, false
	}
	return ScheduleMismatch{Signature: sig, Departures: variants}, true
}

// labelRoutes assigns each trade-off label to exactly one route. The
// cheapest label skips a route already labeled fastest; the reliable label
// skips both prior winners. Routes with unknown price never win cheapest.
func labelRoutes(routes []models.Route) {
	if len(routes) == 0 {
		return
	}

	for i := range routes {
		routes[i].Label = ""
	}

	fastest := 0
	for i, r := range routes {
		if r.TotalTimeHours < routes[fastest].TotalTimeHours {
			fastest = i
		}
	}
	routes[fastest].Label = models.LabelFastest

	cheapest := -1
	for i, r := range routes {
		if r.TotalPrice == nil {
			continue
		}
		if cheapest < 0 || *r.TotalPrice < *routes[cheapest].TotalPrice {
			cheapest = i
		}
	}
	if cheapest >= 0 && cheapest != fastest {
		routes[cheapest].Label = models.LabelCheapest
	}

	reliable := 0
	for i, r := range routes {
		if r.TotalDelayRisk < routes[reliable].TotalDelayRisk {
			reliable = i
		}
	}
	if reliable != fastest && reliable != cheapest {
		routes[reliable].Label = models.LabelReliable
	}
}

// sortRoutes orders labeled routes first (fastest, cheapest, reliable, each
// by its own criterion), then the rest by total time ascending
func sortRoutes(routes []models.Route) {
	rank := func(r models.Route) (int, float64) {
		switch r.Label {
		case models.LabelFastest:
			return 0, r.TotalTimeHours
		case models.LabelCheapest:
			return 1, priceOrInf(r)
		case models.LabelReliable:
			return 2, r.TotalDelayRisk
		default:
			return 3, r.TotalTimeHours
		}
	}

	sort.SliceStable(routes, func(i, j int) bool {
		ri, vi := rank(routes[i])
		rj, vj := rank(routes[j])
		if ri != rj {
			return ri < rj
		}
		return vi < vj
	})
}

func priceOrInf(r models.Route) float64 {
	if r.TotalPrice == nil {
		return math.Inf(1)
	}
	return *r.TotalPrice
}
