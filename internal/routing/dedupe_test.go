package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideo/rideo_core/internal/models"
)

func mkRoute(id string, price float64, hours, risk float64, legs ...models.Segment) models.Route {
	return models.Route{
		ID:             id,
		Segments:       legs,
		TotalPrice:     &price,
		TotalTimeHours: hours,
		TotalDelayRisk: risk,
	}
}

func legAt(from, to, operator string, depHour int) models.Segment {
	return models.Segment{
		FromID:    from,
		ToID:      to,
		Type:      models.TransportBus,
		Operator:  operator,
		Source:    models.SourceDemo,
		Departure: searchDate.Add(time.Duration(depHour) * time.Hour),
	}
}

func TestSelectKeepsCheapestAndFastestPerClass(t *testing.T) {
	// same logical path, three schedule variants
	cheap := mkRoute("cheap", 300, 6, 0.1, legAt("A", "B", "op", 8))
	fast := mkRoute("fast", 900, 2, 0.1, legAt("A", "B", "op", 9))
	middle := mkRoute("middle", 600, 4, 0.1, legAt("A", "B", "op", 10))

	routes, _ := Select([]models.Route{middle, cheap, fast})

	require.Len(t, routes, 2)
	ids := []string{routes[0].ID, routes[1].ID}
	assert.Contains(t, ids, "cheap")
	assert.Contains(t, ids, "fast")
}

func TestSelectSingleMemberClass(t *testing.T) {
	only := mkRoute("only", 500, 2, 0.1, legAt("A", "B", "op", 8))

	routes, mismatches := Select([]models.Route{only})

	require.Len(t, routes, 1)
	assert.Empty(t, mismatches)
	assert.Equal(t, models.LabelFastest, routes[0].Label,
		"a sole route earns only the fastest label")
}

func TestSelectDifferentOperatorsAreDifferentClasses(t *testing.T) {
	r1 := mkRoute("r1", 500, 2, 0.1, legAt("A", "B", "op-1", 8))
	r2 := mkRoute("r2", 500, 2, 0.1, legAt("A", "B", "op-2", 8))

	routes, _ := Select([]models.Route{r1, r2})
	assert.Len(t, routes, 2)
}

func TestSelectLabels(t *testing.T) {
	fastest := mkRoute("fastest", 900, 2, 0.3, legAt("A", "B", "op-1", 8))
	cheapest := mkRoute("cheapest", 300, 8, 0.2, legAt("A", "C", "op-2", 8), legAt("C", "B", "op-2", 12))
	reliable := mkRoute("reliable", 600, 5, 0.05, legAt("A", "B", "op-3", 9))

	routes, _ := Select([]models.Route{cheapest, reliable, fastest})
	require.Len(t, routes, 3)

	assert.Equal(t, "fastest", routes[0].ID)
	assert.Equal(t, models.LabelFastest, routes[0].Label)
	assert.Equal(t, "cheapest", routes[1].ID)
	assert.Equal(t, models.LabelCheapest, routes[1].Label)
	assert.Equal(t, "reliable", routes[2].ID)
	assert.Equal(t, models.LabelReliable, routes[2].Label)
}

func TestSelectLabelCoincidence(t *testing.T) {
	// one route wins everything; the other two get no label
	winner := mkRoute("winner", 300, 2, 0.05, legAt("A", "B", "op-1", 8))
	slower := mkRoute("slower", 600, 5, 0.3, legAt("A", "B", "op-2", 8))
	slowest := mkRoute("slowest", 900, 7, 0.4, legAt("A", "B", "op-3", 8))

	routes, _ := Select([]models.Route{winner, slower, slowest})
	require.Len(t, routes, 3)

	assert.Equal(t, models.LabelFastest, routes[0].Label)
	assert.Equal(t, models.RecommendedLabel(""), routes[1].Label)
	assert.Equal(t, models.RecommendedLabel(""), routes[2].Label)

	// unlabeled tail is ordered by total time
	assert.Equal(t, "slower", routes[1].ID)
	assert.Equal(t, "slowest", routes[2].ID)
}

func TestSelectUnknownPriceNeverWinsCheapest(t *testing.T) {
	unknown := mkRoute("unknown", 0, 2, 0.2, legAt("A", "B", "op-1", 8))
	unknown.TotalPrice = nil
	priced := mkRoute("priced", 700, 5, 0.3, legAt("A", "B", "op-2", 8))

	routes, _ := Select([]models.Route{unknown, priced})
	require.Len(t, routes, 2)

	for _, r := range routes {
		if r.ID == "unknown" {
			assert.NotEqual(t, models.LabelCheapest, r.Label)
		}
		if r.ID == "priced" {
			assert.Equal(t, models.LabelCheapest, r.Label)
		}
	}
}

func TestSelectScheduleMismatchDiagnostics(t *testing.T) {
	morning := mkRoute("morning", 500, 2, 0.1, legAt("A", "B", "op", 8))
	evening := mkRoute("evening", 500, 2, 0.1, legAt("A", "B", "op", 20))

	_, mismatches := Select([]models.Route{morning, evening})

	require.Len(t, mismatches, 1)
	assert.Len(t, mismatches[0].Departures, 2)
}

func TestSelectIdempotent(t *testing.T) {
	input := []models.Route{
		mkRoute("r1", 900, 2, 0.3, legAt("A", "B", "op-1", 8)),
		mkRoute("r2", 300, 8, 0.2, legAt("A", "C", "op-2", 8), legAt("C", "B", "op-2", 12)),
		mkRoute("r3", 600, 5, 0.05, legAt("A", "B", "op-3", 9)),
		mkRoute("r4", 450, 4, 0.15, legAt("A", "B", "op-3", 9)),
	}

	first, _ := Select(input)
	second, _ := Select(first)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Label, second[i].Label)
	}
}

func TestSelectEmpty(t *testing.T) {
	routes, mismatches := Select(nil)
	assert.Empty(t, routes)
	assert.Empty(t, mismatches)
}
