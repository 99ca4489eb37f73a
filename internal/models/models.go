package models

import "time"

// TransportType represents the mode of a travel segment
type TransportType string

const (
	TransportBus   TransportType = "bus"
	TransportAir   TransportType = "air"
	TransportRail  TransportType = "rail"
	TransportRiver TransportType = "river"
)

// SegmentSource identifies which provider a segment came from.
// The source selects the timestamp-anchoring rule during path search
// and marks synthetic edges.
type SegmentSource string

const (
	SourceDemo   SegmentSource = "demo"
	SourceGARS   SegmentSource = "gars"
	SourceYandex SegmentSource = "yandex_rasp"
	SourceBridge SegmentSource = "bridge"
)

// RecommendedLabel marks the trade-off a route wins on
type RecommendedLabel string

const (
	LabelFastest  RecommendedLabel = "fastest"
	LabelCheapest RecommendedLabel = "cheapest"
	LabelReliable RecommendedLabel = "reliable"
)

// Stop represents a catalogued or virtual location
type Stop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Segment represents one travel leg between two locations.
//
// Departure/Arrival are absolute only for sources that publish full
// timestamps (demo, yandex_rasp). For gars segments the date component is a
// placeholder and ScheduleDep/ScheduleArr carry the real time of day; the
// search anchors them to the travel date. Bridge segments have no schedule
// at all and are timed entirely by the search.
type Segment struct {
	ID        string        `json:"id"`
	FromID    string        `json:"from_id"`
	ToID      string        `json:"to_id"`
	FromName  string        `json:"from_name"`
	ToName    string        `json:"to_name"`
	Operator  string        `json:"operator"`
	Type      TransportType `json:"type"`
	Departure time.Time     `json:"departure"`
	Arrival   time.Time     `json:"arrival"`

	// Schedule times as published by GARS (ISO strings with a dummy date)
	ScheduleDep string `json:"schedule_dep_time,omitempty"`
	ScheduleArr string `json:"schedule_arr_time,omitempty"`

	// DurationHours is the declared ride length, used when the timestamps
	// cannot be trusted. Zero means unknown.
	DurationHours float64 `json:"duration_hours,omitempty"`

	// Price is nil when the provider declared no fare; the tariff store
	// resolves it at assembly time via RouteKey.
	Price     *float64      `json:"price"`
	RouteKey  string        `json:"route_key,omitempty"`
	DelayRisk float64       `json:"delay_risk"`
	Source    SegmentSource `json:"source"`
}

// HasPrice reports whether the segment carries a declared fare
func (s Segment) HasPrice() bool {
	return s.Price != nil
}

// Route represents a complete priced and timed itinerary
type Route struct {
	ID             string           `json:"id"`
	Segments       []Segment        `json:"segments"`
	TotalPrice     *float64         `json:"total_price"`
	TotalTimeHours float64          `json:"total_time_hours"`
	TotalDelayRisk float64          `json:"total_delay_risk"`
	Label          RecommendedLabel `json:"recommended_label,omitempty"`
}

// TariffRow is one fare record from an active-fares snapshot.
// StartDate is nil when the fare has no effective-from boundary.
type TariffRow struct {
	RouteKey  string
	FromKey   string
	ToKey     string
	Price     float64
	StartDate *time.Time
	Raw       map[string]any
}

// FareDocument groups the fare rows registered by one recorder document
type FareDocument struct {
	RecorderKey string
	Rows        []FareRecord
}

// FareRecord is a raw fare-register row before tariff indexing
type FareRecord struct {
	RouteKey string
	FromKey  string
	ToKey    string
	Price    *float64
	Period   string
	Active   *bool
	Line     string
	Raw      map[string]any
}

// Raw provider records, one shape per source. The normalizer converts each
// into the canonical Segment; everything else in the core only sees Segment.

// RawDemoSegment is a record from the local demo snapshot (segments.json)
type RawDemoSegment struct {
	ID        string   `json:"id"`
	FromID    string   `json:"from_id"`
	ToID      string   `json:"to_id"`
	FromName  string   `json:"from_name"`
	ToName    string   `json:"to_name"`
	Operator  string   `json:"operator"`
	Type      string   `json:"type"`
	Departure string   `json:"departure"`
	Arrival   string   `json:"arrival"`
	Price     *float64 `json:"price"`
	DelayRisk float64  `json:"delay_risk"`
}

// RawGARSSegment is a segment synthesized from a GARS fare row joined with
// the stop catalog and the per-route timetable
type RawGARSSegment struct {
	RecorderKey string
	Line        string
	RouteKey    string
	FromKey     string
	ToKey       string
	FromName    string
	ToName      string
	Price       float64
	ScheduleDep string
	ScheduleArr string
}

// RawYandexLeg is one thread leg exploded from a Yandex Rasp search result
type RawYandexLeg struct {
	ThreadUID     string
	FromTitle     string
	ToTitle       string
	Carrier       string
	TransportType string
	Departure     string
	Arrival       string
}
