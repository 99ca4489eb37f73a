package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

// DemoSource reads the local catalog snapshot (stops.json, segments.json)
// from a data directory. It is the base catalog: if it cannot load, the
// process cannot serve.
type DemoSource struct {
	DataDir string
}

// NewDemoSource creates a demo source rooted at dir
func NewDemoSource(dir string) *DemoSource {
	return &DemoSource{DataDir: dir}
}

func (d *DemoSource) Name() string { return "demo" }

// FetchStops loads the local stop catalog
func (d *DemoSource) FetchStops(ctx context.Context) ([]models.Stop, error) {
	var stops []models.Stop
	if err := d.readJSON("stops.json", &stops); err != nil {
		return nil, err
	}
	return stops, nil
}

// FetchSegmentCatalog loads and normalizes the local demo segments.
// Structurally invalid records are dropped, not raised.
func (d *DemoSource) FetchSegmentCatalog(ctx context.Context) ([]models.Segment, error) {
	var raw []models.RawDemoSegment
	if err := d.readJSON("segments.json", &raw); err != nil {
		return nil, err
	}

	segments := make([]models.Segment, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		sg, ok := normalize.Demo(r)
		if !ok {
			dropped++
			continue
		}
		segments = append(segments, sg)
	}

	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Skipped malformed demo segments")
	}
	return segments, nil
}

func (d *DemoSource) readJSON(name string, out any) error {
	path := filepath.Join(d.DataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
