package geo

import (
	"math"

	"github.com/markermap/markermap/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Map tiles are in Web Mercator (EPSG:3857) with 256px tiles; at zoom 0 one
// tile covers the whole world.
const (
	tileSize       = 256
	earthRadius    = 6378137.0
	maxMercatorLat = 85.0511287798
)

// metersPerPixelZoom0 is the ground resolution at zoom 0 along the equator.
var metersPerPixelZoom0 = 2 * math.Pi * earthRadius / tileSize

// Envelope returns the envelope of the given coordinates, with X as longitude
// and Y as latitude. An empty input yields an empty envelope.
func Envelope(points []core.LatLng) geom.Envelope {
	var env geom.Envelope
	for _, p := range points {
		env = env.ExpandToIncludeXY(geom.XY{X: p.Lng, Y: p.Lat})
	}
	return env
}

// BoundsFromEnvelope converts a lng/lat envelope. ok is false for an empty
// envelope.
func BoundsFromEnvelope(env geom.Envelope) (b core.Bounds, ok bool) {
	minXY, maxXY, ok := env.MinMaxXYs()
	if !ok {
		return core.Bounds{}, false
	}
	return core.Bounds{
		SouthWest: core.LatLng{Lat: minXY.Y, Lng: minXY.X},
		NorthEast: core.LatLng{Lat: maxXY.Y, Lng: maxXY.X},
	}, true
}

// MarkerBounds returns the bounding box of the marker positions.
func MarkerBounds(markers []core.Marker) (core.Bounds, bool) {
	points := make([]core.LatLng, len(markers))
	for i, m := range markers {
		points[i] = m.Position()
	}
	return BoundsFromEnvelope(Envelope(points))
}

// Project converts a WGS84 coordinate to Web Mercator meters. Latitudes are
// clamped to the Mercator limit.
func Project(p core.LatLng) geom.XY {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat))
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(p.Lng, lat, 0)
	return geom.XY{X: x, Y: y}
}

// Unproject converts Web Mercator meters back to WGS84.
func Unproject(xy geom.XY) core.LatLng {
	f := wgs84.EPSG().Transform(3857, 4326)
	lng, lat, _ := f(xy.X, xy.Y, 0)
	return core.LatLng{Lat: lat, Lng: lng}
}

// BoundsZoom returns the highest integer zoom at which b fits into a viewport
// of width x height pixels, clamped to [0, maxZoom].
func BoundsZoom(b core.Bounds, width, height, maxZoom int) int {
	sw := Project(b.SouthWest)
	ne := Project(b.NorthEast)
	dx := math.Abs(ne.X - sw.X)
	dy := math.Abs(ne.Y - sw.Y)

	scale := math.Inf(1)
	if dx > 0 {
		scale = math.Min(scale, float64(width)*metersPerPixelZoom0/dx)
	}
	if dy > 0 {
		scale = math.Min(scale, float64(height)*metersPerPixelZoom0/dy)
	}
	if math.IsNaN(scale) {
		return 0
	}
	if math.IsInf(scale, 1) {
		return maxZoom
	}

	// small epsilon absorbs projection rounding at exact powers of two
	zoom := int(math.Floor(math.Log2(scale) + 1e-9))
	if zoom < 0 {
		return 0
	}
	if zoom > maxZoom {
		return maxZoom
	}
	return zoom
}

// FitView returns the center and zoom that frame b in the viewport. The
// center is taken in projected space, as the map library does.
func FitView(b core.Bounds, width, height, maxZoom int) (core.LatLng, int) {
	sw := Project(b.SouthWest)
	ne := Project(b.NorthEast)
	center := Unproject(geom.XY{X: (sw.X + ne.X) / 2, Y: (sw.Y + ne.Y) / 2})
	return center, BoundsZoom(b, width, height, maxZoom)
}
