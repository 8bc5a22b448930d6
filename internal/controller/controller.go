// Package controller drives the marker view: it mounts a map on the host
// page, groups the dataset into one overlay per hardware category and keeps
// the overlays populated with the markers inside the selected time window.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markermap/markermap/internal/dataset"
	"github.com/markermap/markermap/internal/geo"
	"github.com/markermap/markermap/internal/mapview"
	"github.com/markermap/markermap/internal/page"
	"github.com/markermap/markermap/internal/timefilter"
	"github.com/markermap/markermap/internal/toggle"
	"github.com/markermap/markermap/pkg/core"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/markermap/markermap/internal/controller"

// DefaultZoom is the zoom level the map opens at.
const DefaultZoom = 7

// ToggleIDSuffix is appended to the mount id to form the toggle list id.
const ToggleIDSuffix = "-layers"

// ErrNotInitialized is returned by operations that need a mounted map.
var ErrNotInitialized = errors.New("marker view is not initialized")

// Loader fetches the marker dataset belonging to a page.
type Loader interface {
	Fetch(ctx context.Context, pageURL string) ([]core.Marker, error)
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Alert(message string)
}

// Reporter receives statistics of every filter pass.
type Reporter interface {
	Report(ctx context.Context, s core.PassStats) error
}

// Options configures a Controller.
type Options struct {
	Zoom         int
	Tiles        mapview.TileLayer
	IconTemplate string
	// Reporter is optional.
	Reporter Reporter
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the stock view: zoom 7 over OpenStreetMap tiles.
func DefaultOptions() Options {
	return Options{
		Zoom: DefaultZoom,
		Tiles: mapview.TileLayer{
			URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "&copy; OpenStreetMap contributors",
		},
		IconTemplate: mapview.DefaultIconTemplate,
		Now:          time.Now,
	}
}

// Controller holds all state of one marker view.
type Controller struct {
	logger   zerolog.Logger
	factory  mapview.Factory
	loader   Loader
	notifier Notifier
	opts     Options

	mount      *page.Mount
	view       mapview.Map
	markers    []core.Marker
	categories []string
	overlays   map[string]*mapview.Overlay
	rendered   []*mapview.Visual
	toggles    *toggle.List

	now    time.Time
	window timefilter.Window
	passes metric.Int64Counter
}

// New creates a controller. Nothing is fetched or mounted until Init.
func New(factory mapview.Factory, loader Loader, notifier Notifier, opts Options, logger zerolog.Logger) (*Controller, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IconTemplate == "" {
		opts.IconTemplate = mapview.DefaultIconTemplate
	}

	passes, err := otel.Meter(instrumentationName).Int64Counter(
		"markerview.filter.passes",
		metric.WithDescription("Total time filter passes applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating filter pass counter: %w", err)
	}

	return &Controller{
		logger:   logger.With().Str("component", "controller").Logger(),
		factory:  factory,
		loader:   loader,
		notifier: notifier,
		opts:     opts,
		overlays: make(map[string]*mapview.Overlay),
		passes:   passes,
	}, nil
}

// Init mounts the view on doc. A mount error is only logged; a load error is
// logged and shown through the notifier, and no map is created in either
// case. The initial selection is applied once the layers exist; an invalid
// one falls back to the unbounded window.
func (c *Controller) Init(ctx context.Context, doc *page.Document, pageURL, initial string) error {
	if c.view != nil {
		return errors.New("marker view is already initialized")
	}

	mount, err := doc.FindMount()
	if err != nil {
		c.logger.Error().Err(err).Msg("Map container not found")
		return err
	}

	markers, err := c.loader.Fetch(ctx, pageURL)
	if err != nil {
		c.logger.Error().Err(err).Str("page", pageURL).Msg("Error loading marker data")
		var loadErr *dataset.LoadError
		if errors.As(err, &loadErr) {
			c.notifier.Alert(loadErr.UserMessage())
		} else {
			c.notifier.Alert(err.Error())
		}
		return err
	}
	c.now = c.opts.Now()
	c.mount = mount
	c.markers = markers

	c.view = c.factory(mount.ID)
	c.view.SetView(mount.Center, c.opts.Zoom)
	c.view.AddTileLayer(c.opts.Tiles)

	c.group()

	c.toggles = toggle.New(mount.ID + ToggleIDSuffix)
	err = c.toggles.Build(c.categories, c.iconFor, func(l *toggle.List) {
		l.OnChange(c.onToggle)
	})
	if err != nil {
		return fmt.Errorf("failed to build layer control: %w", err)
	}

	c.logger.Info().
		Str("mount", mount.ID).
		Int("markers", len(markers)).
		Int("categories", len(c.categories)).
		Msg("Marker view initialized")

	if err := c.ApplyFilter(ctx, initial); err != nil {
		c.logger.Warn().Err(err).Str("selection", initial).Msg("Invalid initial time filter, showing all markers")
		return c.ApplyFilter(ctx, timefilter.All)
	}
	return nil
}

// group creates one overlay per category in first-seen order.
func (c *Controller) group() {
	for _, m := range c.markers {
		if _, ok := c.overlays[m.Hardware]; ok {
			continue
		}
		o := mapview.NewOverlay(m.Hardware)
		c.overlays[m.Hardware] = o
		c.categories = append(c.categories, m.Hardware)
		c.view.AddLayer(o)
	}
}

// iconFor returns the icon of the first marker of the category.
func (c *Controller) iconFor(category string) string {
	for _, m := range c.markers {
		if m.Hardware != category {
			continue
		}
		if m.IconURL != "" {
			return m.IconURL
		}
		return mapview.FallbackIconURL(m.Color, c.opts.IconTemplate)
	}
	return ""
}

func (c *Controller) onToggle(category string, checked bool) {
	o, ok := c.overlays[category]
	if !ok {
		return
	}
	if checked {
		c.view.AddLayer(o)
	} else {
		c.view.RemoveLayer(o)
	}
	c.logger.Debug().Str("category", category).Bool("shown", checked).Msg("Layer toggled")
}

// ApplyFilter repopulates the overlays with the markers inside the window
// described by value and fits the view to them. A value that does not parse
// leaves the view untouched.
func (c *Controller) ApplyFilter(ctx context.Context, value string) error {
	sel, err := timefilter.Parse(value)
	if err != nil {
		return err
	}
	if c.view == nil {
		return ErrNotInitialized
	}
	window := sel.Window(c.now)

	for _, v := range c.rendered {
		c.overlays[v.Marker.Hardware].Remove(v)
	}
	c.rendered = c.rendered[:0]

	visible := window.Apply(c.markers)
	for _, m := range visible {
		v := mapview.NewVisual(m, c.opts.IconTemplate)
		c.overlays[m.Hardware].Add(v)
		c.rendered = append(c.rendered, v)
	}
	c.window = window

	if b, ok := geo.MarkerBounds(visible); ok {
		c.view.FitBounds(b)
	}

	c.passes.Add(ctx, 1, metric.WithAttributes(attribute.String("selection", sel.String())))
	c.logger.Debug().
		Str("selection", sel.String()).
		Int64("threshold", window.Threshold()).
		Int("visible", len(visible)).
		Int("total", len(c.markers)).
		Msg("Time filter applied")

	if c.opts.Reporter != nil {
		if err := c.opts.Reporter.Report(ctx, c.stats(visible)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to report filter stats")
		}
	}
	return nil
}

func (c *Controller) stats(visible []core.Marker) core.PassStats {
	per := make(map[string]int, len(c.categories))
	for _, cat := range c.categories {
		per[cat] = 0
	}
	for _, m := range visible {
		per[m.Hardware]++
	}
	return core.PassStats{
		Selection:   c.window.Selection().String(),
		Threshold:   c.window.Threshold(),
		Total:       len(c.markers),
		Visible:     len(visible),
		PerCategory: per,
		At:          c.now,
	}
}

// ToggleLayer checks or unchecks a category in the toggle list, which shows
// or hides its overlay. The filtered marker set is not affected.
func (c *Controller) ToggleLayer(category string, on bool) error {
	if c.toggles == nil {
		return ErrNotInitialized
	}
	return c.toggles.SetChecked(category, on)
}

// Mount returns the mount element, nil before Init succeeds.
func (c *Controller) Mount() *page.Mount {
	return c.mount
}

// Map returns the mounted map, nil before Init succeeds.
func (c *Controller) Map() mapview.Map {
	return c.view
}

// Toggles returns the layer toggle list.
func (c *Controller) Toggles() *toggle.List {
	return c.toggles
}

// Categories returns the categories in first-seen order.
func (c *Controller) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Overlay returns the overlay of a category.
func (c *Controller) Overlay(category string) (*mapview.Overlay, bool) {
	o, ok := c.overlays[category]
	return o, ok
}

// Window returns the window of the last filter pass.
func (c *Controller) Window() timefilter.Window {
	return c.window
}

// Visible returns the markers rendered by the last filter pass.
func (c *Controller) Visible() []core.Marker {
	out := make([]core.Marker, len(c.rendered))
	for i, v := range c.rendered {
		out[i] = v.Marker
	}
	return out
}

// Now returns the reference time captured when the dataset loaded.
func (c *Controller) Now() time.Time {
	return c.now
}
