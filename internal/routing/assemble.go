package routing

import (
	"strings"
	"time"

	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
	"github.com/rideo/rideo_core/internal/tariff"
)

// Assembler turns raw paths into priced, timed, risk-scored routes
type Assembler struct {
	Catalog *catalog.Catalog
	Tariffs *tariff.Store
}

// Assemble builds a route from a time-consistent path.
//
// Bridge legs stay in the displayed leg list (they are real transfer
// actions) but never contribute to the price or the elapsed-time window.
// The total price is nil when any billable leg has neither a declared
// fare nor a tariff resolution; a partially summed total would silently
// understate the trip. Total time spans the earliest departure to the
// latest arrival, so layovers count. Delay risk composes as the chance
// that at least one leg is disrupted, legs assumed independent.
func (a *Assembler) Assemble(path RawPath, travelDate time.Time) models.Route {
	var (
		total        float64
		priceKnown   = true
		survival     = 1.0
		firstDep     time.Time
		lastArr      time.Time
		haveBillable bool
	)

	segments := make([]models.Segment, 0, len(path.Segments))
	ids := make([]string, 0, len(path.Segments))

	for _, sg := range path.Segments {
		if a.Catalog != nil {
			sg.FromName = a.Catalog.DisplayName(sg.FromID, sg.FromName)
			sg.ToName = a.Catalog.DisplayName(sg.ToID, sg.ToName)
		}

		survival *= 1 - normalize.ClampRisk(sg.DelayRisk)
		ids = append(ids, sg.ID)

		if sg.Source != models.SourceBridge {
			if price, ok := a.legPrice(sg, travelDate); ok {
				sg.Price = &price
				total += price
			} else {
				priceKnown = false
			}

			if !haveBillable || sg.Departure.Before(firstDep) {
				firstDep = sg.Departure
			}
			if !haveBillable || sg.Arrival.After(lastArr) {
				lastArr = sg.Arrival
			}
			haveBillable = true
		}

		segments = append(segments, sg)
	}

	var totalHours float64
	if haveBillable {
		totalHours = lastArr.Sub(firstDep).Hours()
	} else if n := len(segments); n > 0 {
		// pure-bridge path: fall back to the synthetic window
		totalHours = segments[n-1].Arrival.Sub(segments[0].Departure).Hours()
	}

	route := models.Route{
		ID:             "route_" + strings.Join(ids, "__"),
		Segments:       segments,
		TotalTimeHours: totalHours,
		TotalDelayRisk: 1 - survival,
	}
	if priceKnown {
		route.TotalPrice = &total
	}
	return route
}

// legPrice resolves the fare for one billable leg: the declared price when
// present, otherwise the tariff store chain for the leg's route
func (a *Assembler) legPrice(sg models.Segment, travelDate time.Time) (float64, bool) {
	if sg.Price != nil {
		return *sg.Price, true
	}
	if a.Tariffs == nil || sg.RouteKey == "" {
		return 0, false
	}
	return a.Tariffs.Resolve(sg.RouteKey, sg.FromID, sg.ToID, travelDate)
}
