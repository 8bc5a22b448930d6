package dataset

import (
	"math"

	"github.com/markermap/markermap/pkg/core"
)

// record is the wire form of a marker. Exporters write epochTime either as
// an integer or as a float such as 1500000000.0; both decode here.
type record struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Hardware  string  `json:"hardware"`
	IconURL   string  `json:"iconUrl"`
	Color     string  `json:"color"`
	Popup     string  `json:"popup"`
	Tooltip   string  `json:"tooltip"`
	EpochTime float64 `json:"epochTime"`
}

func (r record) marker() core.Marker {
	return core.Marker{
		Lat:       r.Lat,
		Lng:       r.Lng,
		Hardware:  r.Hardware,
		IconURL:   r.IconURL,
		Color:     r.Color,
		Popup:     r.Popup,
		Tooltip:   r.Tooltip,
		EpochTime: epochSeconds(r.EpochTime),
	}
}

// epochSeconds floors a timestamp to whole seconds. Flooring keeps
// comparisons against whole-second thresholds exact. A positive fraction
// below one second stays dated instead of turning into the undated sentinel.
func epochSeconds(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	case f > 0 && f < 1:
		return 1
	}
	return int64(math.Floor(f))
}
