package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markermap/markermap/internal/dispatcher"
)

// ErrBadArgs is returned for events with missing or malformed arguments.
var ErrBadArgs = errors.New("bad event arguments")

// Register installs the filter and layer handlers on d. Handlers use ctx for
// the work they trigger.
func (c *Controller) Register(ctx context.Context, d *dispatcher.Dispatcher) {
	d.Register(dispatcher.CommandFilterChange, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("%w: %s expects 1 argument, got %d", ErrBadArgs, e.Command, len(e.Args))
		}
		if err := c.ApplyFilter(ctx, e.Args[0]); err != nil {
			return nil, err
		}
		return c.window.Selection().String(), nil
	}, dispatcher.Logged())

	d.Register(dispatcher.CommandLayerToggle, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 2 {
			return nil, fmt.Errorf("%w: %s expects 2 arguments, got %d", ErrBadArgs, e.Command, len(e.Args))
		}
		on, err := parseSwitch(e.Args[1])
		if err != nil {
			return nil, err
		}
		if err := c.ToggleLayer(e.Args[0], on); err != nil {
			return nil, err
		}
		return "ok", nil
	}, dispatcher.Logged())
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", ErrBadArgs, s)
}
