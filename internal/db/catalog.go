package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
)

const batchSize = 1000

// CatalogStore persists and loads catalog snapshots (stops plus base
// segments). The importer writes a snapshot; the API process can read it
// back instead of the JSON files when RIDEO_CATALOG_SOURCE=db.
type CatalogStore struct {
	db *pgxpool.Pool
}

// NewCatalogStore creates a catalog store over a connection pool
func NewCatalogStore(db *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{db: db}
}

// EnsureSchema creates the snapshot tables when missing
func (s *CatalogStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stop (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS segment (
			id             TEXT PRIMARY KEY,
			from_id        TEXT NOT NULL,
			to_id          TEXT NOT NULL,
			from_name      TEXT NOT NULL DEFAULT '',
			to_name        TEXT NOT NULL DEFAULT '',
			operator       TEXT NOT NULL DEFAULT '',
			transport_type TEXT NOT NULL DEFAULT 'bus',
			departure      TIMESTAMP,
			arrival        TIMESTAMP,
			schedule_dep   TEXT NOT NULL DEFAULT '',
			schedule_arr   TEXT NOT NULL DEFAULT '',
			duration_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			price          DOUBLE PRECISION,
			route_key      TEXT NOT NULL DEFAULT '',
			delay_risk     DOUBLE PRECISION NOT NULL DEFAULT 0,
			source         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_segment_from ON segment (from_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return nil
}

// ImportSnapshot replaces the persisted snapshot with the given stops and
// segments
func (s *CatalogStore) ImportSnapshot(ctx context.Context, stops []models.Stop, segments []models.Segment) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `TRUNCATE stop, segment`); err != nil {
		return fmt.Errorf("failed to clear snapshot tables: %w", err)
	}

	batch := &pgx.Batch{}
	for _, stop := range stops {
		batch.Queue(`
			INSERT INTO stop (id, name, city) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, city = EXCLUDED.city
		`, stop.ID, stop.Name, stop.City)

		if batch.Len() >= batchSize {
			if err := s.sendBatch(ctx, batch); err != nil {
				return err
			}
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		if err := s.sendBatch(ctx, batch); err != nil {
			return err
		}
	}

	batch = &pgx.Batch{}
	for _, sg := range segments {
		batch.Queue(`
			INSERT INTO segment (
				id, from_id, to_id, from_name, to_name, operator, transport_type,
				departure, arrival, schedule_dep, schedule_arr, duration_hours,
				price, route_key, delay_risk, source
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (id) DO NOTHING
		`,
			sg.ID, sg.FromID, sg.ToID, sg.FromName, sg.ToName, sg.Operator, string(sg.Type),
			nullableTime(sg.Departure), nullableTime(sg.Arrival), sg.ScheduleDep, sg.ScheduleArr,
			sg.DurationHours, sg.Price, sg.RouteKey, sg.DelayRisk, string(sg.Source),
		)

		if batch.Len() >= batchSize {
			if err := s.sendBatch(ctx, batch); err != nil {
				return err
			}
			batch = &pgx.Batch{}
		}
	}
	if batch.Len() > 0 {
		if err := s.sendBatch(ctx, batch); err != nil {
			return err
		}
	}

	log.Info().Int("stops", len(stops)).Int("segments", len(segments)).Msg("Catalog snapshot imported")
	return nil
}

// LoadStops reads the persisted stop catalog
func (s *CatalogStore) LoadStops(ctx context.Context) ([]models.Stop, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, city FROM stop`)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var stop models.Stop
		if err := rows.Scan(&stop.ID, &stop.Name, &stop.City); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

// LoadSegments reads the persisted base segments
func (s *CatalogStore) LoadSegments(ctx context.Context) ([]models.Segment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, from_id, to_id, from_name, to_name, operator, transport_type,
		       departure, arrival, schedule_dep, schedule_arr, duration_hours,
		       price, route_key, delay_risk, source
		FROM segment
		ORDER BY from_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}
	defer rows.Close()

	var segments []models.Segment
	for rows.Next() {
		var (
			sg            models.Segment
			transportType string
			source        string
			dep, arr      *time.Time
		)
		if err := rows.Scan(
			&sg.ID, &sg.FromID, &sg.ToID, &sg.FromName, &sg.ToName, &sg.Operator, &transportType,
			&dep, &arr, &sg.ScheduleDep, &sg.ScheduleArr, &sg.DurationHours,
			&sg.Price, &sg.RouteKey, &sg.DelayRisk, &source,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		if dep != nil {
			sg.Departure = *dep
		}
		if arr != nil {
			sg.Arrival = *arr
		}
		sg.Type = models.TransportType(transportType)
		sg.Source = models.SegmentSource(source)
		segments = append(segments, sg)
	}
	return segments, rows.Err()
}

func (s *CatalogStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert failed at statement %d: %w", i, err)
		}
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
