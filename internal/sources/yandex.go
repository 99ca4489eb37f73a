package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rideo/rideo_core/internal/models"
	"github.com/rideo/rideo_core/internal/normalize"
)

// YandexConfig holds settings for the Yandex Rasp schedule API
type YandexConfig struct {
	APIKey         string
	BaseURL        string
	TransportTypes string
	Limit          int
	Timeout        time.Duration
}

// LoadYandexConfigFromEnv loads Yandex Rasp configuration from environment
// variables
func LoadYandexConfigFromEnv() YandexConfig {
	limit, _ := strconv.Atoi(getEnv("YANDEX_RASP_LIMIT", "50"))
	timeout, _ := time.ParseDuration(getEnv("YANDEX_RASP_TIMEOUT", "40s"))
	return YandexConfig{
		APIKey:         getEnv("YANDEX_RASP_API_KEY", ""),
		BaseURL:        getEnv("YANDEX_RASP_BASE_URL", "https://api.rasp.yandex.net/v3.0"),
		TransportTypes: getEnv("YANDEX_RASP_TRANSPORT_TYPES", "plane,train"),
		Limit:          limit,
		Timeout:        timeout,
	}
}

// YandexClient fetches long-distance segments from the Yandex Rasp search
// API. Free-text city names are resolved to settlement codes through the
// stations_list directory, which is fetched once and cached for the
// process lifetime.
type YandexClient struct {
	cfg  YandexConfig
	http *http.Client

	mu       sync.Mutex
	stations *stationsList
}

// NewYandexClient creates a client with the given configuration
func NewYandexClient(cfg YandexConfig) *YandexClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &YandexClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *YandexClient) Name() string { return "yandex_rasp" }

// stations_list response shape, reduced to what settlement resolution needs

type stationsList struct {
	Countries []struct {
		Regions []struct {
			Settlements []struct {
				Title string `json:"title"`
				Codes struct {
					YandexCode string `json:"yandex_code"`
				} `json:"codes"`
			} `json:"settlements"`
		} `json:"regions"`
	} `json:"countries"`
}

// search response shape, reduced to the exploded thread legs

type yandexSearchResponse struct {
	Segments []struct {
		Details []struct {
			Thread *struct {
				UID           string `json:"uid"`
				Title         string `json:"title"`
				TransportType string `json:"transport_type"`
				Carrier       struct {
					Title string `json:"title"`
				} `json:"carrier"`
			} `json:"thread"`
			From struct {
				Title string `json:"title"`
			} `json:"from"`
			To struct {
				Title string `json:"title"`
			} `json:"to"`
			Departure string `json:"departure"`
			Arrival   string `json:"arrival"`
		} `json:"details"`
	} `json:"segments"`
}

// FetchSegments searches Yandex Rasp between the query endpoints and
// explodes each found variant into per-thread legs. A missing API key is
// an unavailable source, reported as an error for the caller to degrade.
func (c *YandexClient) FetchSegments(ctx context.Context, q Query) ([]models.Segment, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("YANDEX_RASP_API_KEY not set")
	}

	fromCode, err := c.resolveCode(ctx, q.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve origin %q: %w", q.Origin, err)
	}
	toCode, err := c.resolveCode(ctx, q.Destination)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination %q: %w", q.Destination, err)
	}

	params := url.Values{
		"apikey":          {c.cfg.APIKey},
		"format":          {"json"},
		"from":            {fromCode},
		"to":              {toCode},
		"date":            {q.Date.Format("2006-01-02")},
		"transport_types": {c.cfg.TransportTypes},
		"limit":           {strconv.Itoa(c.cfg.Limit)},
		"system":          {"yandex"},
		"transfers":       {"true"},
	}

	var resp yandexSearchResponse
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/search/", params, &resp); err != nil {
		return nil, err
	}

	var segments []models.Segment
	for _, variant := range resp.Segments {
		for _, d := range variant.Details {
			if d.Thread == nil {
				// transfer block, not a ride
				continue
			}

			carrier := d.Thread.Carrier.Title
			if carrier == "" {
				carrier = d.Thread.Title
			}

			raw := models.RawYandexLeg{
				ThreadUID:     d.Thread.UID,
				FromTitle:     d.From.Title,
				ToTitle:       d.To.Title,
				Carrier:       carrier,
				TransportType: d.Thread.TransportType,
				Departure:     d.Departure,
				Arrival:       d.Arrival,
			}
			if sg, ok := normalize.Yandex(raw); ok {
				segments = append(segments, sg)
			}
		}
	}

	log.Debug().Int("legs", len(segments)).Str("from", fromCode).Str("to", toCode).Msg("Yandex Rasp search done")
	return segments, nil
}

// resolveCode maps a free-text city to a Yandex settlement code. Values
// that already look like codes (c/s/y prefix plus digits) pass through.
// Exact normalized title matches win over partial ones.
func (c *YandexClient) resolveCode(ctx context.Context, raw string) (string, error) {
	name := normalize.Name(raw)
	if name == "" {
		return "", fmt.Errorf("empty location")
	}
	if looksLikeYandexCode(name) {
		return name, nil
	}

	stations, err := c.loadStations(ctx)
	if err != nil {
		return "", err
	}

	partial := ""
	for _, country := range stations.Countries {
		for _, region := range country.Regions {
			for _, settlement := range region.Settlements {
				code := settlement.Codes.YandexCode
				if code == "" {
					continue
				}
				title := normalize.Name(settlement.Title)
				if title == name {
					return code, nil
				}
				if partial == "" && strings.Contains(title, name) {
					partial = code
				}
			}
		}
	}

	if partial != "" {
		return partial, nil
	}
	return "", fmt.Errorf("city %q not found in stations_list", raw)
}

// loadStations fetches and caches the stations directory
func (c *YandexClient) loadStations(ctx context.Context) (*stationsList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stations != nil {
		return c.stations, nil
	}

	params := url.Values{
		"apikey": {c.cfg.APIKey},
		"format": {"json"},
		"lang":   {"ru_RU"},
	}

	var list stationsList
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/stations_list/", params, &list); err != nil {
		return nil, err
	}

	c.stations = &list
	return c.stations, nil
}

func (c *YandexClient) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("yandex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yandex request returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode yandex response: %w", err)
	}
	return nil
}

func looksLikeYandexCode(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] != 'c' && s[0] != 's' && s[0] != 'y' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
