// pkg/core/marker.go
package core

// Marker is one record of the marker dataset. Field names follow the JSON
// document produced by the data exporter.
type Marker struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Hardware  string  `json:"hardware"`
	IconURL   string  `json:"iconUrl,omitempty"`
	Color     string  `json:"color"`
	Popup     string  `json:"popup"`
	Tooltip   string  `json:"tooltip"`
	EpochTime int64   `json:"epochTime"`
}

// Position returns the marker coordinates
func (m Marker) Position() LatLng {
	return LatLng{Lat: m.Lat, Lng: m.Lng}
}

// Undated reports whether the marker carries the "no timestamp" sentinel.
// Undated markers are shown under every time window.
func (m Marker) Undated() bool {
	return m.EpochTime == 0
}
