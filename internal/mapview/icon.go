package mapview

import "strings"

// ColorPlaceholder is replaced by the marker color in fallback icon templates.
const ColorPlaceholder = "{color}"

// DefaultIconTemplate points at the leaflet-color-markers icon set.
const DefaultIconTemplate = "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-" + ColorPlaceholder + ".png"

// Pixel is an icon size or anchor offset in screen pixels.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Icon is a marker image with its anchors.
type Icon struct {
	URL           string `json:"url"`
	Size          Pixel  `json:"size"`
	Anchor        Pixel  `json:"anchor"`
	PopupAnchor   Pixel  `json:"popupAnchor"`
	TooltipAnchor Pixel  `json:"tooltipAnchor"`
	// Default marks the library's stock marker icon with a swapped image.
	Default bool `json:"default"`
}

// ExplicitIcon is a 48x48 icon anchored at its bottom center.
func ExplicitIcon(url string) Icon {
	return Icon{
		URL:           url,
		Size:          Pixel{X: 48, Y: 48},
		Anchor:        Pixel{X: 24, Y: 48},
		PopupAnchor:   Pixel{X: 0, Y: -48},
		TooltipAnchor: Pixel{X: 24, Y: -24},
	}
}

// DefaultIcon is the stock marker shape with the colored image selected by
// color. Anchors match the stock 25x41 pin.
func DefaultIcon(color, template string) Icon {
	return Icon{
		URL:           FallbackIconURL(color, template),
		Size:          Pixel{X: 25, Y: 41},
		Anchor:        Pixel{X: 12, Y: 41},
		PopupAnchor:   Pixel{X: 1, Y: -34},
		TooltipAnchor: Pixel{X: 16, Y: -28},
		Default:       true,
	}
}

// FallbackIconURL fills the color into template. An empty template uses
// DefaultIconTemplate.
func FallbackIconURL(color, template string) string {
	if template == "" {
		template = DefaultIconTemplate
	}
	return strings.ReplaceAll(template, ColorPlaceholder, color)
}
