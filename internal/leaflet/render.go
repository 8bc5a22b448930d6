package leaflet

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/markermap/markermap/internal/mapview"
	"github.com/markermap/markermap/pkg/core"
)

type markerJSON struct {
	Position     core.LatLng  `json:"position"`
	Icon         mapview.Icon `json:"icon"`
	Popup        string       `json:"popup"`
	Tooltip      string       `json:"tooltip"`
	Sticky       bool         `json:"sticky"`
	ZIndexOffset int          `json:"zIndexOffset"`
}

type layerJSON struct {
	Name    string       `json:"name"`
	Shown   bool         `json:"shown"`
	Markers []markerJSON `json:"markers"`
}

type sceneJSON struct {
	MountID  string              `json:"mountId"`
	ToggleID string              `json:"toggleId,omitempty"`
	Center   core.LatLng         `json:"center"`
	Zoom     int                 `json:"zoom"`
	Tiles    []mapview.TileLayer `json:"tiles"`
	Layers   []layerJSON         `json:"layers"`
}

// The scene is handed to the script as JSON; html/template escapes it for the
// script context.
var sceneTemplate = template.Must(template.New("scene").Parse(`{{.Control}}
<script>
(function () {
  var scene = {{.Scene}};
  var map = L.map(scene.mountId).setView([scene.center.lat, scene.center.lng], scene.zoom);
  scene.tiles.forEach(function (t) {
    L.tileLayer(t.urlTemplate, {attribution: t.attribution}).addTo(map);
  });
  var groups = {};
  scene.layers.forEach(function (layer) {
    var group = L.featureGroup();
    layer.markers.forEach(function (m) {
      var icon;
      if (m.icon.default) {
        icon = new L.Icon.Default();
        icon.options.iconUrl = m.icon.url;
      } else {
        icon = L.icon({
          iconUrl: m.icon.url,
          iconSize: [m.icon.size.x, m.icon.size.y],
          iconAnchor: [m.icon.anchor.x, m.icon.anchor.y],
          popupAnchor: [m.icon.popupAnchor.x, m.icon.popupAnchor.y],
          tooltipAnchor: [m.icon.tooltipAnchor.x, m.icon.tooltipAnchor.y]
        });
      }
      L.marker([m.position.lat, m.position.lng], {icon: icon, zIndexOffset: m.zIndexOffset})
        .bindPopup(m.popup)
        .bindTooltip(m.tooltip, {sticky: m.sticky})
        .addTo(group);
    });
    if (layer.shown) {
      group.addTo(map);
    }
    groups[layer.name] = group;
  });
  if (!scene.toggleId) {
    return;
  }
  var list = document.getElementById(scene.toggleId);
  if (!list) {
    return;
  }
  var control = L.control({position: 'topright'});
  control.onAdd = function () {
    list.style.display = '';
    L.DomEvent.disableClickPropagation(list);
    return list;
  };
  control.addTo(map);
  list.querySelectorAll('input[data-category]').forEach(function (box) {
    box.addEventListener('change', function () {
      var group = groups[box.getAttribute('data-category')];
      if (!group) {
        return;
      }
      if (box.checked) {
        map.addLayer(group);
      } else {
        map.removeLayer(group);
      }
    });
  });
})();
</script>
`))

// Control is markup hosted by the map as a control, identified by its
// element id.
type Control struct {
	ID     string
	Markup template.HTML
}

// Render returns the markup for the scene. The optional control is placed
// before the bootstrap script and attached to the map's top-right corner.
func (s *Scene) Render(control *Control) (template.HTML, error) {
	data := struct {
		Control template.HTML
		Scene   sceneJSON
	}{
		Scene: s.snapshot(),
	}
	if control != nil {
		data.Control = control.Markup
		data.Scene.ToggleID = control.ID
	}

	var buf bytes.Buffer
	if err := sceneTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render scene: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (s *Scene) snapshot() sceneJSON {
	out := sceneJSON{
		MountID: s.mountID,
		Center:  s.center,
		Zoom:    s.zoom,
		Tiles:   s.Tiles(),
		Layers:  make([]layerJSON, 0, len(s.overlays)),
	}
	if out.Tiles == nil {
		out.Tiles = []mapview.TileLayer{}
	}
	for _, o := range s.overlays {
		layer := layerJSON{
			Name:    o.Name(),
			Shown:   s.shown[o],
			Markers: make([]markerJSON, 0, o.Len()),
		}
		for _, v := range o.Visuals() {
			layer.Markers = append(layer.Markers, markerJSON{
				Position:     v.Marker.Position(),
				Icon:         v.Icon,
				Popup:        v.Popup,
				Tooltip:      v.Tooltip,
				Sticky:       v.StickyTooltip,
				ZIndexOffset: v.ZIndexOffset,
			})
		}
		out.Layers = append(out.Layers, layer)
	}
	return out
}
