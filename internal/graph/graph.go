package graph

import (
	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
)

// Adjacency is the per-request routing graph: every segment reachable from
// a location, keyed by its origin identifier
type Adjacency map[string][]models.Segment

// Build merges segments from all sources into an adjacency structure.
// Self-loop edges never enter the graph.
func Build(segments []models.Segment) Adjacency {
	adj := make(Adjacency)
	dropped := 0

	for _, sg := range segments {
		if sg.FromID == "" || sg.ToID == "" || sg.FromID == sg.ToID {
			dropped++
			continue
		}
		adj[sg.FromID] = append(adj[sg.FromID], sg)
	}

	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("Discarded self-loop or endpoint-less segments")
	}
	return adj
}

// Edges returns the outgoing segments for a location
func (a Adjacency) Edges(fromID string) []models.Segment {
	return a[fromID]
}

// Size returns the number of edges in the graph
func (a Adjacency) Size() int {
	n := 0
	for _, edges := range a {
		n += len(edges)
	}
	return n
}
