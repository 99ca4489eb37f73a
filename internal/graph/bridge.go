package graph

import (
	"fmt"

	"github.com/rideo/rideo_core/internal/catalog"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

// BridgeDurationHours is the synthetic length of a bridge edge (1 minute)
const BridgeDurationHours = 1.0 / 60.0

// BridgeEdges synthesizes zero-cost transfer edges between each hub city's
// virtual location and every catalogued stop in that city, in both
// directions. They exist so a free-text city query that resolved to no
// catalogued stop can still enter and leave the real network. Hubs with no
// catalogued stops contribute nothing.
func BridgeEdges(cat *catalog.Catalog, hubCities []string) []models.Segment {
	var bridges []models.Segment

	seen := make(map[string]bool)
	for _, city := range hubCities {
		cityID := normalize.CityID(city)
		if seen[cityID] {
			continue
		}
		seen[cityID] = true

		cityName := normalize.Name(city)
		for _, stop := range cat.StopsInCity(city) {
			bridges = append(bridges,
				bridgeEdge(cityID, cityName, stop.ID, stop.Name),
				bridgeEdge(stop.ID, stop.Name, cityID, cityName),
			)
		}
	}

	return bridges
}

func bridgeEdge(fromID, fromName, toID, toName string) models.Segment {
	price := 0.0
	return models.Segment{
		ID:            fmt.Sprintf("bridge_%s__%s", fromID, toID),
		FromID:        fromID,
		ToID:          toID,
		FromName:      fromName,
		ToName:        toName,
		Operator:      "transfer",
		Type:          models.TransportBus,
		DurationHours: BridgeDurationHours,
		Price:         &price,
		DelayRisk:     0,
		Source:        models.SourceBridge,
	}
}
