package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/tariff"
)

func pricedSeg(id, from, to string, price float64, depHour, arrHour int, risk float64) models.Segment {
	sg := demoSeg(id, from, to, depHour, arrHour)
	sg.Price = &price
	sg.DelayRisk = risk
	return sg
}

func TestAssembleTotals(t *testing.T) {
	a := &Assembler{}

	path := RawPath{Segments: []models.Segment{
		pricedSeg("1", "A", "B", 500, 8, 10, 0.1),
		pricedSeg("2", "B", "C", 300, 12, 15, 0.2),
	}}

	route := a.Assemble(path, searchDate)

	require.NotNil(t, route.TotalPrice)
	assert.Equal(t, 800.0, *route.TotalPrice)

	// 08:00 departure to 15:00 arrival: layovers count
	assert.InDelta(t, 7.0, route.TotalTimeHours, 1e-9)

	// 1 - 0.9*0.8
	assert.InDelta(t, 0.28, route.TotalDelayRisk, 1e-9)

	assert.Equal(t, "route_1__2", route.ID)
}

func TestAssembleUnknownPrice(t *testing.T) {
	a := &Assembler{}

	unpriced := demoSeg("2", "B", "C", 12, 15)
	unpriced.Price = nil

	route := a.Assemble(RawPath{Segments: []models.Segment{
		pricedSeg("1", "A", "B", 500, 8, 10, 0),
		unpriced,
	}}, searchDate)

	assert.Nil(t, route.TotalPrice, "a partially priced route must report an unknown total, not a partial sum")
}

func TestAssembleResolvesPriceFromTariffs(t *testing.T) {
	price := 750.0
	store := tariff.NewStore()
	store.LoadDocuments([]models.FareDocument{{Rows: []models.FareRecord{{
		RouteKey: "route-1",
		FromKey:  "A",
		ToKey:    "B",
		Price:    &price,
	}}}})

	a := &Assembler{Tariffs: store}

	leg := demoSeg("1", "A", "B", 8, 10)
	leg.Price = nil
	leg.RouteKey = "route-1"

	route := a.Assemble(RawPath{Segments: []models.Segment{leg}}, searchDate)

	require.NotNil(t, route.TotalPrice)
	assert.Equal(t, 750.0, *route.TotalPrice)
	require.NotNil(t, route.Segments[0].Price)
	assert.Equal(t, 750.0, *route.Segments[0].Price)
}

func TestAssembleBridgeExclusion(t *testing.T) {
	a := &Assembler{}

	bridge := bridgeSeg("br", "city:x", "A")
	bridge.Departure = searchDate
	bridge.Arrival = searchDate.Add(time.Minute)

	route := a.Assemble(RawPath{Segments: []models.Segment{
		bridge,
		pricedSeg("1", "A", "B", 500, 8, 10, 0.1),
	}}, searchDate)

	assert.Len(t, route.Segments, 2, "bridge legs stay in the displayed list")

	require.NotNil(t, route.TotalPrice)
	assert.Equal(t, 500.0, *route.TotalPrice)

	// the time window spans billable legs only, not the midnight bridge
	assert.InDelta(t, 2.0, route.TotalTimeHours, 1e-9)
}

func TestAssemblePureBridgePath(t *testing.T) {
	a := &Assembler{}

	bridge := bridgeSeg("br", "city:x", "A")
	bridge.Departure = searchDate
	bridge.Arrival = searchDate.Add(time.Minute)

	route := a.Assemble(RawPath{Segments: []models.Segment{bridge}}, searchDate)

	require.NotNil(t, route.TotalPrice)
	assert.Equal(t, 0.0, *route.TotalPrice)
	assert.InDelta(t, 1.0/60.0, route.TotalTimeHours, 1e-9)
}

func TestAssembleClampsRisk(t *testing.T) {
	a := &Assembler{}

	leg := pricedSeg("1", "A", "B", 500, 8, 10, 1.7)
	route := a.Assemble(RawPath{Segments: []models.Segment{leg}}, searchDate)

	assert.InDelta(t, 1.0, route.TotalDelayRisk, 1e-9)
}

func TestAssembleRewritesNamesFromCatalog(t *testing.T) {
	cat := catalog.NewCatalog()
	cat.LoadStops([]models.Stop{
		{ID: "A", Name: "Автовокзал Якутск", City: "Якутск"},
		{ID: "B", Name: "АС Нижний Бестях", City: "Нижний Бестях"},
	})

	a := &Assembler{Catalog: cat}

	leg := pricedSeg("1", "A", "B", 500, 8, 10, 0)
	leg.FromName = "raw name"

	route := a.Assemble(RawPath{Segments: []models.Segment{leg}}, searchDate)

	assert.Equal(t, "Автовокзал Якутск", route.Segments[0].FromName)
	assert.Equal(t, "АС Нижний Бестях", route.Segments[0].ToName)
}
