package routing

import (
	"context"
	"time"

	"github.com/rideo/rideo_core/internal/graph"
	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

const (
	// DefaultMaxLegs bounds path depth; the visited set already guarantees
	// termination over cyclic graphs, the depth guard keeps dense graphs
	// from exploding
	DefaultMaxLegs = 10

	// defaultGARSDurationHours stands in for a missing or non-positive
	// declared ride length on a schedule-only segment
	defaultGARSDurationHours = 0.5
)

// RawPath is an ordered, time-consistent chain of segments produced by the
// search. Segment copies carry the absolute departure/arrival computed
// while descending.
type RawPath struct {
	Segments []models.Segment
}

// searcher holds the immutable inputs of one path enumeration
type searcher struct {
	adj     graph.Adjacency
	dests   map[string]bool
	maxLegs int
	paths   []RawPath
}

// FindPaths enumerates every simple path from the origin candidates to the
// destination set, anchoring timestamps to the requested travel date. The
// seed arrival is midnight of that date, so results are deterministic for
// a given catalog. The context is a safety valve for pathological graphs;
// cancellation returns the paths found so far along with ctx.Err().
func FindPaths(ctx context.Context, adj graph.Adjacency, originIDs, destIDs []string, travelDate time.Time, maxLegs int) ([]RawPath, error) {
	if maxLegs <= 0 {
		maxLegs = DefaultMaxLegs
	}

	dests := make(map[string]bool, len(destIDs))
	for _, id := range destIDs {
		dests[id] = true
	}

	s := &searcher{adj: adj, dests: dests, maxLegs: maxLegs}
	seed := time.Date(travelDate.Year(), travelDate.Month(), travelDate.Day(), 0, 0, 0, 0, time.UTC)

	for _, origin := range originIDs {
		if ctx.Err() != nil {
			break
		}
		s.dfs(ctx, origin, map[string]bool{origin: true}, nil, seed)
	}

	return s.paths, ctx.Err()
}

// dfs extends the path one edge at a time. The visited set is copied per
// branch so sibling branches never observe each other's state. A path
// terminates at the first destination hit; destinations are not transited
// through.
func (s *searcher) dfs(ctx context.Context, node string, visited map[string]bool, path []models.Segment, lastArrival time.Time) {
	if s.dests[node] && len(path) > 0 {
		s.paths = append(s.paths, RawPath{Segments: append([]models.Segment(nil), path...)})
		return
	}

	if len(path) >= s.maxLegs || ctx.Err() != nil {
		return
	}

	for _, sg := range s.adj.Edges(node) {
		if visited[sg.ToID] {
			continue
		}

		timed := anchorSegment(sg, lastArrival)

		branchVisited := make(map[string]bool, len(visited)+1)
		for id := range visited {
			branchVisited[id] = true
		}
		branchVisited[sg.ToID] = true

		s.dfs(ctx, sg.ToID, branchVisited, append(path, timed), timed.Arrival)
	}
}

// anchorSegment computes the absolute departure and arrival of an edge
// taken after the given frontier arrival, per the source's timestamp rule
func anchorSegment(sg models.Segment, lastArrival time.Time) models.Segment {
	switch sg.Source {
	case models.SourceBridge:
		sg.Departure = lastArrival
		sg.Arrival = lastArrival.Add(time.Minute)

	case models.SourceGARS:
		dep := lastArrival
		if t, err := normalize.ParseTimestamp(sg.ScheduleDep); err == nil {
			// the schedule carries only a time of day; take the date from
			// the frontier and roll over midnight when the departure would
			// precede it
			dep = time.Date(
				lastArrival.Year(), lastArrival.Month(), lastArrival.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, lastArrival.Location(),
			)
			if dep.Before(lastArrival) {
				dep = dep.AddDate(0, 0, 1)
			}
		}

		duration := sg.DurationHours
		if duration <= 0 {
			duration = defaultGARSDurationHours
		}

		sg.Departure = dep
		sg.Arrival = dep.Add(time.Duration(duration * float64(time.Hour)))

	default:
		// absolute-timestamp sources are taken verbatim
	}

	return sg
}
