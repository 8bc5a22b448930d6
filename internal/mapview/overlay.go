package mapview

import "github.com/markermap/markermap/pkg/core"

// ZIndexOffset lifts markers above other overlays.
const ZIndexOffset = 1000

// Visual is a rendered marker: the record, its icon, a popup and a tooltip.
type Visual struct {
	Marker        core.Marker
	Icon          Icon
	Popup         string
	Tooltip       string
	StickyTooltip bool
	ZIndexOffset  int
}

// NewVisual builds the visual for m. Records with an icon URL use it,
// others fall back to the colored default icon built from iconTemplate.
func NewVisual(m core.Marker, iconTemplate string) *Visual {
	icon := DefaultIcon(m.Color, iconTemplate)
	if m.IconURL != "" {
		icon = ExplicitIcon(m.IconURL)
	}
	return &Visual{
		Marker:        m,
		Icon:          icon,
		Popup:         m.Popup,
		Tooltip:       m.Tooltip,
		StickyTooltip: true,
		ZIndexOffset:  ZIndexOffset,
	}
}

// Overlay is a named group of visuals that is shown or hidden as a unit.
type Overlay struct {
	name    string
	visuals []*Visual
}

// NewOverlay creates an empty overlay.
func NewOverlay(name string) *Overlay {
	return &Overlay{name: name}
}

// Name returns the overlay name
func (o *Overlay) Name() string {
	return o.name
}

// Add appends a visual
func (o *Overlay) Add(v *Visual) {
	o.visuals = append(o.visuals, v)
}

// Remove drops a visual. It reports whether v was present.
func (o *Overlay) Remove(v *Visual) bool {
	for i, cur := range o.visuals {
		if cur == v {
			o.visuals = append(o.visuals[:i], o.visuals[i+1:]...)
			return true
		}
	}
	return false
}

// Visuals returns a copy of the overlay contents in insertion order.
func (o *Overlay) Visuals() []*Visual {
	out := make([]*Visual, len(o.visuals))
	copy(out, o.visuals)
	return out
}

// Len returns the number of visuals
func (o *Overlay) Len() int {
	return len(o.visuals)
}
