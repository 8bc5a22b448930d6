package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/markermap/markermap/internal/dataset"
	"github.com/markermap/markermap/internal/leaflet"
	"github.com/markermap/markermap/internal/page"
	"github.com/markermap/markermap/internal/timefilter"
	"github.com/markermap/markermap/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

const hostPage = `<html><body>
<select id="time-filter"><option value="all">All</option><option value="1">1h</option></select>
<div id="map_sites" data-center-lat="48.1" data-center-lng="11.5"></div>
</body></html>`

type staticLoader struct {
	markers []core.Marker
	err     error
	calls   int
}

func (l *staticLoader) Fetch(context.Context, string) ([]core.Marker, error) {
	l.calls++
	return l.markers, l.err
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Alert(msg string) {
	n.messages = append(n.messages, msg)
}

type recordingReporter struct {
	stats []core.PassStats
	err   error
}

func (r *recordingReporter) Report(_ context.Context, s core.PassStats) error {
	r.stats = append(r.stats, s)
	return r.err
}

type fixture struct {
	ctrl     *Controller
	loader   *staticLoader
	notifier *recordingNotifier
	scenes   []*leaflet.Scene
}

func newFixture(t *testing.T, markers []core.Marker, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		loader:   &staticLoader{markers: markers},
		notifier: &recordingNotifier{},
	}
	o := DefaultOptions()
	o.Now = func() time.Time { return now }
	for _, fn := range opts {
		fn(&o)
	}
	factory := leaflet.NewFactory(leaflet.DefaultOptions(), func(s *leaflet.Scene) {
		f.scenes = append(f.scenes, s)
	})
	ctrl, err := New(factory, f.loader, f.notifier, o, zerolog.Nop())
	require.NoError(t, err)
	f.ctrl = ctrl
	return f
}

func (f *fixture) init(t *testing.T, initial string) error {
	t.Helper()
	doc, err := page.Parse(strings.NewReader(hostPage))
	require.NoError(t, err)
	return f.ctrl.Init(context.Background(), doc, "http://localhost/site/index.html", initial)
}

// scenario: A is undated, B is two hours old.
func scenario() []core.Marker {
	return []core.Marker{
		{Lat: 10, Lng: 10, Hardware: "X", Color: "red", Popup: "A", Tooltip: "a", EpochTime: 0},
		{Lat: 20, Lng: 20, Hardware: "Y", IconURL: "https://example.com/y.png", Popup: "B", Tooltip: "b", EpochTime: now.Unix() - 7200},
	}
}

func popups(markers []core.Marker) []string {
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = m.Popup
	}
	return out
}

func TestInit_BuildsMap(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))

	require.Len(t, f.scenes, 1)
	scene := f.scenes[0]
	assert.Equal(t, "map_sites", scene.MountID())
	require.Len(t, scene.Tiles(), 1)
	assert.Contains(t, scene.Tiles()[0].URLTemplate, "openstreetmap")

	assert.Equal(t, []string{"X", "Y"}, f.ctrl.Categories())
	require.Len(t, scene.Overlays(), 2)
	for _, o := range scene.Overlays() {
		assert.True(t, scene.HasLayer(o))
	}

	entries := f.ctrl.Toggles().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "map_sites-layers", f.ctrl.Toggles().ID())
	assert.Equal(t, "https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-red.png", entries[0].IconURL)
	assert.Equal(t, "https://example.com/y.png", entries[1].IconURL)
	assert.True(t, entries[0].Checked)
	assert.Empty(t, f.notifier.messages)
	assert.Equal(t, now, f.ctrl.Now())
}

func TestInit_OpensAtZoom7BeforeFiltering(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.init(t, "all"))

	center, zoom := f.scenes[0].View()
	assert.Equal(t, core.LatLng{Lat: 48.1, Lng: 11.5}, center)
	assert.Equal(t, DefaultZoom, zoom)
}

func TestFilter_Scenario(t *testing.T) {
	tests := []struct {
		selection string
		want      []string
	}{
		{"1", []string{"A"}},
		{"3", []string{"A", "B"}},
		{"all", []string{"A", "B"}},
		{"0", []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.selection, func(t *testing.T) {
			f := newFixture(t, scenario())
			require.NoError(t, f.init(t, tt.selection))
			assert.Equal(t, tt.want, popups(f.ctrl.Visible()))
		})
	}
}

func TestFilter_SingleVisibleMarkerCentersOnIt(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "1"))

	center, zoom := f.scenes[0].View()
	assert.InDelta(t, 10, center.Lat, 1e-6)
	assert.InDelta(t, 10, center.Lng, 1e-6)
	assert.Equal(t, leaflet.DefaultOptions().MaxZoom, zoom)
}

func TestFilter_FitsAllVisible(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))

	center, zoom := f.scenes[0].View()
	assert.InDelta(t, 15, center.Lng, 1e-6)
	assert.Greater(t, center.Lat, 14.0)
	assert.Less(t, center.Lat, 16.0)
	assert.Less(t, zoom, DefaultZoom)
}

func TestFilter_RepopulatesOverlays(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))

	x, _ := f.ctrl.Overlay("X")
	y, _ := f.ctrl.Overlay("Y")
	assert.Equal(t, 1, x.Len())
	assert.Equal(t, 1, y.Len())

	require.NoError(t, f.ctrl.ApplyFilter(context.Background(), "1"))
	assert.Equal(t, 1, x.Len())
	assert.Equal(t, 0, y.Len())

	require.NoError(t, f.ctrl.ApplyFilter(context.Background(), "all"))
	assert.Equal(t, 1, y.Len())
	assert.Equal(t, "https://example.com/y.png", y.Visuals()[0].Icon.URL)
	assert.Equal(t, 48, y.Visuals()[0].Icon.Size.X)
	assert.True(t, x.Visuals()[0].Icon.Default)
	assert.True(t, x.Visuals()[0].StickyTooltip)

	// categories never change
	assert.Len(t, f.scenes[0].Overlays(), 2)
}

func TestFilter_Idempotent(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "3"))
	first := f.ctrl.Visible()
	c1, z1 := f.scenes[0].View()

	require.NoError(t, f.ctrl.ApplyFilter(context.Background(), "3"))
	c2, z2 := f.scenes[0].View()

	assert.Equal(t, first, f.ctrl.Visible())
	assert.Equal(t, c1, c2)
	assert.Equal(t, z1, z2)
	x, _ := f.ctrl.Overlay("X")
	assert.Equal(t, 1, x.Len())
}

func TestFilter_InvalidSelectionLeavesView(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))
	before := f.ctrl.Visible()
	c1, z1 := f.scenes[0].View()

	err := f.ctrl.ApplyFilter(context.Background(), "soon")
	require.ErrorIs(t, err, timefilter.ErrInvalidSelection)

	c2, z2 := f.scenes[0].View()
	assert.Equal(t, before, f.ctrl.Visible())
	assert.Equal(t, c1, c2)
	assert.Equal(t, z1, z2)
	assert.Equal(t, "all", f.ctrl.Window().Selection().String())
}

func TestInit_InvalidInitialSelectionShowsAll(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "later"))

	assert.True(t, f.ctrl.Window().Selection().IsAll())
	assert.Len(t, f.ctrl.Visible(), 2)
}

func TestFilter_NoVisibleKeepsView(t *testing.T) {
	markers := []core.Marker{{Lat: 1, Lng: 1, Hardware: "Old", EpochTime: now.Unix() - 10*3600}}
	f := newFixture(t, markers)
	require.NoError(t, f.init(t, "1"))

	center, zoom := f.scenes[0].View()
	assert.Equal(t, core.LatLng{Lat: 48.1, Lng: 11.5}, center)
	assert.Equal(t, DefaultZoom, zoom)
	assert.Empty(t, f.ctrl.Visible())
	assert.Equal(t, []string{"Old"}, f.ctrl.Categories())
}

func TestInit_EmptyDataset(t *testing.T) {
	f := newFixture(t, []core.Marker{})
	require.NoError(t, f.init(t, "all"))

	scene := f.scenes[0]
	assert.Len(t, scene.Tiles(), 1)
	assert.Empty(t, scene.Overlays())
	assert.Empty(t, f.ctrl.Toggles().Entries())
	center, zoom := scene.View()
	assert.Equal(t, core.LatLng{Lat: 48.1, Lng: 11.5}, center)
	assert.Equal(t, DefaultZoom, zoom)
}

func TestInit_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	f := newFixture(t, nil)
	client := dataset.New("", time.Second, zerolog.Nop())
	ctrl, err := New(leaflet.NewFactory(leaflet.DefaultOptions(), func(s *leaflet.Scene) {
		f.scenes = append(f.scenes, s)
	}), client, f.notifier, DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)

	doc, err := page.Parse(strings.NewReader(hostPage))
	require.NoError(t, err)
	err = ctrl.Init(context.Background(), doc, server.URL+"/site/index.html", "all")

	var loadErr *dataset.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.URL, "/markers_data.json")
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "file://")
	assert.Empty(t, f.scenes)
	assert.Nil(t, ctrl.Map())
}

func TestInit_OtherLoaderError(t *testing.T) {
	f := newFixture(t, nil)
	f.loader.err = errors.New("boom")

	err := f.init(t, "all")
	require.Error(t, err)
	assert.Equal(t, []string{"boom"}, f.notifier.messages)
	assert.Empty(t, f.scenes)
}

func TestInit_MountErrorIsSilent(t *testing.T) {
	f := newFixture(t, scenario())
	doc, err := page.Parse(strings.NewReader(`<html><body><div id="elsewhere"></div></body></html>`))
	require.NoError(t, err)

	err = f.ctrl.Init(context.Background(), doc, "http://localhost/", "all")
	var mountErr *page.MountError
	require.ErrorAs(t, err, &mountErr)
	assert.Empty(t, f.notifier.messages)
	assert.Zero(t, f.loader.calls)
	assert.Empty(t, f.scenes)
}

func TestInit_Twice(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))
	assert.Error(t, f.init(t, "all"))
	assert.Len(t, f.scenes, 1)
}

func TestBeforeInit(t *testing.T) {
	f := newFixture(t, scenario())
	assert.ErrorIs(t, f.ctrl.ApplyFilter(context.Background(), "all"), ErrNotInitialized)
	assert.ErrorIs(t, f.ctrl.ToggleLayer("X", false), ErrNotInitialized)
}

func TestToggleLayer(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))
	scene := f.scenes[0]
	x, _ := f.ctrl.Overlay("X")

	require.NoError(t, f.ctrl.ToggleLayer("X", false))
	assert.False(t, scene.HasLayer(x))
	checked, ok := f.ctrl.Toggles().Checked("X")
	assert.True(t, ok)
	assert.False(t, checked)

	// hidden layers are still filtered
	require.NoError(t, f.ctrl.ApplyFilter(context.Background(), "3"))
	assert.Equal(t, 1, x.Len())
	assert.False(t, scene.HasLayer(x))
	assert.Len(t, f.ctrl.Visible(), 2)

	require.NoError(t, f.ctrl.ToggleLayer("X", true))
	assert.True(t, scene.HasLayer(x))
}

func TestToggleLayer_Unknown(t *testing.T) {
	f := newFixture(t, scenario())
	require.NoError(t, f.init(t, "all"))
	assert.Error(t, f.ctrl.ToggleLayer("Z", false))
}

func TestReporter(t *testing.T) {
	rep := &recordingReporter{err: errors.New("influx down")}
	f := newFixture(t, scenario(), func(o *Options) { o.Reporter = rep })
	require.NoError(t, f.init(t, "1"))

	require.Len(t, rep.stats, 1)
	s := rep.stats[0]
	assert.Equal(t, "1", s.Selection)
	assert.Equal(t, now.Unix()-3600, s.Threshold)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Visible)
	assert.Equal(t, map[string]int{"X": 1, "Y": 0}, s.PerCategory)
}

func TestCustomIconTemplate(t *testing.T) {
	f := newFixture(t, scenario(), func(o *Options) { o.IconTemplate = "/icons/{color}.svg" })
	require.NoError(t, f.init(t, "all"))

	assert.Equal(t, "/icons/red.svg", f.ctrl.Toggles().Entries()[0].IconURL)
	x, _ := f.ctrl.Overlay("X")
	assert.Equal(t, "/icons/red.svg", x.Visuals()[0].Icon.URL)
}
