package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideo/rideo_core/internal/models"
)

type fakeFetcher struct {
	name     string
	segments []models.Segment
	err      error
	delay    time.Duration
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) FetchSegments(ctx context.Context, q Query) ([]models.Segment, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.segments, f.err
}

func TestFetchAllPreservesFetcherOrder(t *testing.T) {
	slow := &fakeFetcher{name: "slow", delay: 50 * time.Millisecond, segments: []models.Segment{{ID: "s1"}}}
	fast := &fakeFetcher{name: "fast", segments: []models.Segment{{ID: "f1"}, {ID: "f2"}}}

	results := FetchAll(context.Background(), []SegmentFetcher{slow, fast}, Query{}, 0)

	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Source)
	assert.Equal(t, "fast", results[1].Source)
	assert.Len(t, results[1].Segments, 2)
}

func TestFetchAllDegradesOnError(t *testing.T) {
	ok := &fakeFetcher{name: "ok", segments: []models.Segment{{ID: "s1"}}}
	broken := &fakeFetcher{name: "broken", err: errors.New("upstream down")}

	results := FetchAll(context.Background(), []SegmentFetcher{ok, broken}, Query{}, 0)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Segments, 1)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Segments)
}

func TestFetchAllTimeout(t *testing.T) {
	hang := &fakeFetcher{name: "hang", delay: time.Second, segments: []models.Segment{{ID: "s1"}}}

	results := FetchAll(context.Background(), []SegmentFetcher{hang}, Query{}, 20*time.Millisecond)

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestFetchAllEmpty(t *testing.T) {
	assert.Nil(t, FetchAll(context.Background(), nil, Query{}, 0))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDemoSourceLoads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stops.json", `[
		{"id": "stop_a", "name": "Автовокзал Якутск", "city": "Якутск"},
		{"id": "stop_b", "name": "АС Нижний Бестях", "city": "Нижний Бестях"}
	]`)
	writeFile(t, dir, "segments.json", `[
		{
			"id": "seg_1", "from_id": "stop_a", "to_id": "stop_b",
			"operator": "Автобусы Якутии", "type": "bus",
			"departure": "2025-02-10T08:00:00", "arrival": "2025-02-10T10:00:00",
			"price": 500, "delay_risk": 0.1
		},
		{
			"id": "seg_bad", "from_id": "", "to_id": "stop_b",
			"departure": "2025-02-10T08:00:00", "arrival": "2025-02-10T10:00:00"
		}
	]`)

	src := NewDemoSource(dir)

	stops, err := src.FetchStops(context.Background())
	require.NoError(t, err)
	assert.Len(t, stops, 2)

	segments, err := src.FetchSegmentCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "seg_1", segments[0].ID)
	assert.Equal(t, models.SourceDemo, segments[0].Source)
}

func TestDemoSourceMissingFiles(t *testing.T) {
	src := NewDemoSource(t.TempDir())

	_, err := src.FetchStops(context.Background())
	assert.Error(t, err)

	_, err = src.FetchSegmentCatalog(context.Background())
	assert.Error(t, err)
}
