package sources

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

// GARSConfig holds connection settings for the GARS 1C OData endpoint
type GARSConfig struct {
	BaseURL   string
	Username  string
	Password  string
	VerifySSL bool
	Timeout   time.Duration
}

// LoadGARSConfigFromEnv loads GARS configuration from environment variables
func LoadGARSConfigFromEnv() GARSConfig {
	timeout, _ := time.ParseDuration(getEnv("GARS_TIMEOUT", "30s"))
	return GARSConfig{
		BaseURL:   getEnv("GARS_BASE_URL", ""),
		Username:  getEnv("GARS_USERNAME", ""),
		Password:  getEnv("GARS_PASSWORD", ""),
		VerifySSL: getEnv("GARS_VERIFY_SSL", "false") == "true",
		Timeout:   timeout,
	}
}

// GARSClient fetches stops, fares and timetables from the regional bus
// operator's 1C OData service. Entity and field names are the 1C Cyrillic
// originals; the client normalizes them into canonical records at the
// boundary.
type GARSClient struct {
	cfg  GARSConfig
	http *http.Client
}

// NewGARSClient creates a client for the given endpoint
func NewGARSClient(cfg GARSConfig) *GARSClient {
	transport := &http.Transport{}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GARSClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (c *GARSClient) Name() string { return "gars" }

// get performs an OData GET and unwraps the {"value": [...]} envelope
func (c *GARSClient) get(ctx context.Context, entity string, params url.Values) ([]map[string]any, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("GARS_BASE_URL not set")
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("$format", "json")

	u := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + entity + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GARS request %s failed: %w", entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GARS request %s returned status %d", entity, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Value != nil {
		return envelope.Value, nil
	}

	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var single map[string]any
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("GARS response for %s is not valid JSON: %w", entity, err)
	}
	return []map[string]any{single}, nil
}

// FetchStops returns the GARS stop catalog. Folder entries are grouping
// nodes, not stops.
func (c *GARSClient) FetchStops(ctx context.Context) ([]models.Stop, error) {
	rows, err := c.get(ctx, "Catalog_Остановки", nil)
	if err != nil {
		return nil, err
	}

	stops := make([]models.Stop, 0, len(rows))
	for _, row := range rows {
		if asBool(row["IsFolder"]) {
			continue
		}
		id := asString(row["Ref_Key"])
		if id == "" {
			continue
		}
		stops = append(stops, models.Stop{
			ID:   id,
			Name: firstString(row, "НаименованиеКраткое", "Description"),
			City: asString(row["НаселенныйПункт"]),
		})
	}
	return stops, nil
}

// FetchFares returns the active fare register grouped by recorder document
func (c *GARSClient) FetchFares(ctx context.Context) ([]models.FareDocument, error) {
	rows, err := c.get(ctx, "InformationRegister_ДействующиеТарифы", nil)
	if err != nil {
		return nil, err
	}

	docs := make([]models.FareDocument, 0, len(rows))
	for _, row := range rows {
		doc := models.FareDocument{RecorderKey: asString(row["Recorder_Key"])}

		recordSet, _ := row["RecordSet"].([]any)
		for _, item := range recordSet {
			rec, ok := item.(map[string]any)
			if !ok {
				continue
			}

			fare := models.FareRecord{
				RouteKey: asString(rec["Маршрут_Key"]),
				FromKey:  asString(rec["ПунктОтправления_Key"]),
				ToKey:    asString(rec["ПунктНазначения_Key"]),
				Period:   asString(rec["Period"]),
				Line:     asString(rec["LineNumber"]),
				Raw:      rec,
			}
			if p, ok := asFloat(rec["Тариф"]); ok {
				fare.Price = &p
			}
			if active, ok := rec["Active"].(bool); ok {
				fare.Active = &active
			}

			doc.Rows = append(doc.Rows, fare)
		}

		docs = append(docs, doc)
	}
	return docs, nil
}

// fetchRouteSchedules maps each route to its first published timetable
// entry (departure/arrival time of day)
func (c *GARSClient) fetchRouteSchedules(ctx context.Context) (map[string][2]string, error) {
	rows, err := c.get(ctx, "Catalog_РейсыРасписания", nil)
	if err != nil {
		return nil, err
	}

	schedules := make(map[string][2]string)
	for _, row := range rows {
		routeKey := asString(row["Маршрут_Key"])
		if routeKey == "" {
			continue
		}
		if _, seen := schedules[routeKey]; seen {
			continue
		}

		dep := asString(row["ВремяОтправления"])
		arr := asString(row["ВремяПрибытия"])
		if dep == "" || arr == "" {
			continue
		}
		schedules[routeKey] = [2]string{dep, arr}
	}

	log.Debug().Int("routes", len(schedules)).Msg("Loaded GARS route timetables")
	return schedules, nil
}

// FetchSegmentCatalog synthesizes travel segments from the fare register:
// every priced (route, from, to) pair whose endpoints exist in the stop
// catalog becomes a bus segment carrying that route's timetable times.
func (c *GARSClient) FetchSegmentCatalog(ctx context.Context) ([]models.Segment, error) {
	stops, err := c.FetchStops(ctx)
	if err != nil {
		return nil, err
	}
	fares, err := c.FetchFares(ctx)
	if err != nil {
		return nil, err
	}

	schedules, err := c.fetchRouteSchedules(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("GARS timetables unavailable, segments will carry no schedule")
		schedules = map[string][2]string{}
	}

	stopByKey := make(map[string]models.Stop, len(stops))
	for _, s := range stops {
		stopByKey[s.ID] = s
	}

	var segments []models.Segment
	for _, doc := range fares {
		for _, rec := range doc.Rows {
			if rec.Price == nil {
				continue
			}
			fromStop, okFrom := stopByKey[rec.FromKey]
			toStop, okTo := stopByKey[rec.ToKey]
			if !okFrom || !okTo {
				continue
			}

			sch := schedules[rec.RouteKey]
			raw := models.RawGARSSegment{
				RecorderKey: doc.RecorderKey,
				Line:        rec.Line,
				RouteKey:    rec.RouteKey,
				FromKey:     rec.FromKey,
				ToKey:       rec.ToKey,
				FromName:    stopName(fromStop),
				ToName:      stopName(toStop),
				Price:       *rec.Price,
				ScheduleDep: sch[0],
				ScheduleArr: sch[1],
			}

			if sg, ok := normalize.GARS(raw); ok {
				segments = append(segments, sg)
			}
		}
	}

	return segments, nil
}

func stopName(s models.Stop) string {
	if s.Name != "" {
		return s.Name
	}
	return "Остановка"
}

func firstString(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := asString(row[k]); v != "" {
			return v
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
