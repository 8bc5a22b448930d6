// Package mapview describes the map library the marker view drives: a map
// with a view, a base tile layer and togglable overlay layers of markers.
package mapview

import "github.com/markermap/markermap/pkg/core"

// Map is the subset of a slippy-map library used by the controller.
type Map interface {
	// SetView centers the map at a zoom level.
	SetView(center core.LatLng, zoom int)
	// View returns the current center and zoom.
	View() (core.LatLng, int)
	// AddTileLayer adds a base tile layer.
	AddTileLayer(t TileLayer)
	// AddLayer shows an overlay. Adding a shown overlay is a no-op.
	AddLayer(o *Overlay)
	// RemoveLayer hides an overlay. Its visuals are kept.
	RemoveLayer(o *Overlay)
	// HasLayer reports whether the overlay is shown.
	HasLayer(o *Overlay) bool
	// FitBounds moves the view so that b is fully visible.
	FitBounds(b core.Bounds)
}

// Factory constructs a map mounted into the element with the given id.
type Factory func(mountID string) Map

// TileLayer is an attributed tile URL template.
type TileLayer struct {
	URLTemplate string `json:"urlTemplate"`
	Attribution string `json:"attribution"`
}
