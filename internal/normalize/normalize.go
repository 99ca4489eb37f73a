package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/rideo/rideo_core/internal/models"
)

// Fallback values for providers that publish incomplete records
const (
	yandexFallbackPrice = 15000.0
	yandexDelayRisk     = 0.18
	garsDelayRisk       = 0.15
	garsOperator        = "Автобусы Якутии"
)

// Name normalizes a free-text location name for matching and for building
// virtual city identifiers. Repeated calls with the same input are stable.
func Name(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CityID builds the idempotent identifier of a virtual city-level location
func CityID(name string) string {
	return "city:" + Name(name)
}

// ParseTransportType maps a provider mode string onto the canonical enum.
// Unknown values default to bus, the dominant mode in the network.
func ParseTransportType(s string) models.TransportType {
	switch models.TransportType(Name(s)) {
	case models.TransportAir:
		return models.TransportAir
	case models.TransportRail:
		return models.TransportRail
	case models.TransportRiver:
		return models.TransportRiver
	default:
		return models.TransportBus
	}
}

// YandexTransportType maps a Yandex Rasp thread transport type onto the
// canonical enum. Unrecognized modes fall back to air, the dominant mode on
// the long-distance threads we request.
func YandexTransportType(s string) models.TransportType {
	switch Name(s) {
	case "plane", "helicopter":
		return models.TransportAir
	case "train", "suburban":
		return models.TransportRail
	case "water", "sea":
		return models.TransportRiver
	case "bus":
		return models.TransportBus
	default:
		return models.TransportAir
	}
}

// ClampRisk bounds a delay risk to the [0,1] probability range
func ClampRisk(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// ParseTimestamp accepts the timestamp shapes seen across providers:
// RFC3339 with offset, or a bare local ISO datetime. Offset-carrying values
// are converted to UTC and treated as naive afterwards.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", s, err)
	}
	return t, nil
}

// Demo converts a record from the local demo snapshot. Records with missing
// endpoints, unparseable timestamps, a non-positive duration or a declared
// non-positive price are dropped.
func Demo(raw models.RawDemoSegment) (models.Segment, bool) {
	if raw.FromID == "" || raw.ToID == "" {
		return models.Segment{}, false
	}

	dep, err := ParseTimestamp(raw.Departure)
	if err != nil {
		return models.Segment{}, false
	}
	arr, err := ParseTimestamp(raw.Arrival)
	if err != nil {
		return models.Segment{}, false
	}

	duration := arr.Sub(dep).Hours()
	if duration <= 0 {
		return models.Segment{}, false
	}

	if raw.Price != nil && *raw.Price <= 0 {
		return models.Segment{}, false
	}

	return models.Segment{
		ID:            raw.ID,
		FromID:        raw.FromID,
		ToID:          raw.ToID,
		FromName:      raw.FromName,
		ToName:        raw.ToName,
		Operator:      raw.Operator,
		Type:          ParseTransportType(raw.Type),
		Departure:     dep,
		Arrival:       arr,
		DurationHours: duration,
		Price:         raw.Price,
		DelayRisk:     ClampRisk(raw.DelayRisk),
		Source:        models.SourceDemo,
	}, true
}

// GARS converts a segment synthesized from the GARS fare register. The
// departure/arrival times are schedule strings whose date component is a
// placeholder; the declared duration is derived from them when both parse,
// otherwise left at zero for the search to default.
func GARS(raw models.RawGARSSegment) (models.Segment, bool) {
	if raw.RouteKey == "" || raw.FromKey == "" || raw.ToKey == "" {
		return models.Segment{}, false
	}
	if raw.Price <= 0 {
		return models.Segment{}, false
	}

	var duration float64
	dep, depErr := ParseTimestamp(raw.ScheduleDep)
	arr, arrErr := ParseTimestamp(raw.ScheduleArr)
	if depErr == nil && arrErr == nil {
		if h := arr.Sub(dep).Hours(); h > 0 {
			duration = h
		}
	}

	price := raw.Price
	return models.Segment{
		ID:            fmt.Sprintf("gars_%s_%s", raw.RecorderKey, raw.Line),
		FromID:        raw.FromKey,
		ToID:          raw.ToKey,
		FromName:      raw.FromName,
		ToName:        raw.ToName,
		Operator:      garsOperator,
		Type:          models.TransportBus,
		ScheduleDep:   raw.ScheduleDep,
		ScheduleArr:   raw.ScheduleArr,
		DurationHours: duration,
		Price:         &price,
		RouteKey:      raw.RouteKey,
		DelayRisk:     garsDelayRisk,
		Source:        models.SourceGARS,
	}, true
}

// Yandex converts one exploded thread leg from a Yandex Rasp search. The
// endpoints are city-level virtual identifiers keyed by normalized title, so
// legs join the graph through the same nodes free-text queries resolve to.
func Yandex(raw models.RawYandexLeg) (models.Segment, bool) {
	if raw.FromTitle == "" || raw.ToTitle == "" {
		return models.Segment{}, false
	}

	dep, err := ParseTimestamp(raw.Departure)
	if err != nil {
		return models.Segment{}, false
	}
	arr, err := ParseTimestamp(raw.Arrival)
	if err != nil {
		return models.Segment{}, false
	}
	duration := arr.Sub(dep).Hours()
	if duration <= 0 {
		return models.Segment{}, false
	}

	price := yandexFallbackPrice
	return models.Segment{
		ID:            fmt.Sprintf("yandex_leg:%s_%s", raw.ThreadUID, raw.Departure),
		FromID:        CityID(raw.FromTitle),
		ToID:          CityID(raw.ToTitle),
		FromName:      raw.FromTitle,
		ToName:        raw.ToTitle,
		Operator:      raw.Carrier,
		Type:          YandexTransportType(raw.TransportType),
		Departure:     dep,
		Arrival:       arr,
		DurationHours: duration,
		Price:         &price,
		DelayRisk:     yandexDelayRisk,
		Source:        models.SourceYandex,
	}, true
}
