// pkg/core/types.go
package core

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a lat/lng bounding box
type Bounds struct {
	SouthWest LatLng `json:"southWest"`
	NorthEast LatLng `json:"northEast"`
}
