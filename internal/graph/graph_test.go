package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/models"
)

func seg(id, from, to string) models.Segment {
	return models.Segment{ID: id, FromID: from, ToID: to, Type: models.TransportBus, Source: models.SourceDemo}
}

func TestBuildAdjacency(t *testing.T) {
	adj := Build([]models.Segment{
		seg("1", "a", "b"),
		seg("2", "a", "c"),
		seg("3", "b", "c"),
	})

	assert.Equal(t, 3, adj.Size())
	assert.Len(t, adj.Edges("a"), 2)
	assert.Len(t, adj.Edges("b"), 1)
	assert.Empty(t, adj.Edges("c"))
}

func TestBuildDropsDegenerateEdges(t *testing.T) {
	adj := Build([]models.Segment{
		seg("loop", "a", "a"),
		seg("no-from", "", "b"),
		seg("no-to", "a", ""),
		seg("ok", "a", "b"),
	})

	require.Equal(t, 1, adj.Size())
	assert.Equal(t, "ok", adj.Edges("a")[0].ID)
}

func TestBridgeEdges(t *testing.T) {
	cat := catalog.NewCatalog()
	cat.LoadStops([]models.Stop{
		{ID: "stop_a", Name: "Автовокзал Якутск", City: "Якутск"},
		{ID: "stop_c", Name: "Аэропорт Якутск", City: "Якутск"},
		{ID: "stop_b", Name: "АС Нижний Бестях", City: "Нижний Бестях"},
	})

	bridges := BridgeEdges(cat, []string{"Якутск"})
	require.Len(t, bridges, 4)

	adj := Build(bridges)
	assert.Len(t, adj.Edges("city:якутск"), 2)
	assert.Len(t, adj.Edges("stop_a"), 1)
	assert.Len(t, adj.Edges("stop_c"), 1)

	out := adj.Edges("city:якутск")[0]
	assert.Equal(t, models.SourceBridge, out.Source)
	assert.Equal(t, "transfer", out.Operator)
	assert.Equal(t, BridgeDurationHours, out.DurationHours)
	require.NotNil(t, out.Price)
	assert.Equal(t, 0.0, *out.Price)
}

func TestBridgeEdgesDedupeHubs(t *testing.T) {
	cat := catalog.NewCatalog()
	cat.LoadStops([]models.Stop{
		{ID: "stop_a", Name: "Автовокзал Якутск", City: "Якутск"},
	})

	// the same hub under different spellings contributes once
	bridges := BridgeEdges(cat, []string{"Якутск", "якутск", "  ЯКУТСК "})
	assert.Len(t, bridges, 2)
}

func TestBridgeEdgesUnknownCity(t *testing.T) {
	cat := catalog.NewCatalog()
	cat.LoadStops(nil)

	assert.Empty(t, BridgeEdges(cat, []string{"Ленск"}))
}
