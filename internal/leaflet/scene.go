// Package leaflet records map operations into a Scene and renders the scene
// as a Leaflet bootstrap script for the host page.
package leaflet

import (
	"github.com/markermap/markermap/internal/geo"
	"github.com/markermap/markermap/internal/mapview"
	"github.com/markermap/markermap/pkg/core"
)

// Options sizes the viewport used for fitting bounds.
type Options struct {
	Width   int
	Height  int
	MaxZoom int
}

// DefaultOptions matches a typical embedded map and the OSM tile zoom range.
func DefaultOptions() Options {
	return Options{Width: 800, Height: 600, MaxZoom: 18}
}

// Scene is an in-memory map. It implements mapview.Map.
type Scene struct {
	mountID string
	opts    Options

	center  core.LatLng
	zoom    int
	viewSet bool

	tiles    []mapview.TileLayer
	overlays []*mapview.Overlay
	shown    map[*mapview.Overlay]bool
}

var _ mapview.Map = (*Scene)(nil)

// New creates an empty scene for the given mount element.
func New(mountID string, opts Options) *Scene {
	return &Scene{
		mountID: mountID,
		opts:    opts,
		shown:   make(map[*mapview.Overlay]bool),
	}
}

// NewFactory returns a mapview.Factory producing scenes. Each scene created is
// also handed to onCreate when it is non-nil.
func NewFactory(opts Options, onCreate func(*Scene)) mapview.Factory {
	return func(mountID string) mapview.Map {
		s := New(mountID, opts)
		if onCreate != nil {
			onCreate(s)
		}
		return s
	}
}

// MountID returns the id of the element the map is mounted into
func (s *Scene) MountID() string {
	return s.mountID
}

// SetView centers the map.
func (s *Scene) SetView(center core.LatLng, zoom int) {
	s.center = center
	s.zoom = zoom
	s.viewSet = true
}

// View returns the current center and zoom.
func (s *Scene) View() (core.LatLng, int) {
	return s.center, s.zoom
}

// AddTileLayer appends a base layer.
func (s *Scene) AddTileLayer(t mapview.TileLayer) {
	s.tiles = append(s.tiles, t)
}

// Tiles returns the base layers in the order they were added.
func (s *Scene) Tiles() []mapview.TileLayer {
	return append([]mapview.TileLayer(nil), s.tiles...)
}

// AddLayer shows o, registering it on first use.
func (s *Scene) AddLayer(o *mapview.Overlay) {
	if _, known := s.shown[o]; !known {
		s.overlays = append(s.overlays, o)
	}
	s.shown[o] = true
}

// RemoveLayer hides o. The overlay stays registered so the page can show it
// again without a re-render.
func (s *Scene) RemoveLayer(o *mapview.Overlay) {
	if _, known := s.shown[o]; known {
		s.shown[o] = false
	}
}

// HasLayer reports whether o is shown.
func (s *Scene) HasLayer(o *mapview.Overlay) bool {
	return s.shown[o]
}

// Overlays returns every overlay ever added, in order.
func (s *Scene) Overlays() []*mapview.Overlay {
	return append([]*mapview.Overlay(nil), s.overlays...)
}

// FitBounds sets the largest view containing b.
func (s *Scene) FitBounds(b core.Bounds) {
	center, zoom := geo.FitView(b, s.opts.Width, s.opts.Height, s.opts.MaxZoom)
	s.SetView(center, zoom)
}
