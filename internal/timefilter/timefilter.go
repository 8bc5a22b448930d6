// Package timefilter implements the recency window applied to marker records.
package timefilter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/markermap/markermap/pkg/core"
)

// All is the selection value for an unbounded window.
const All = "all"

const secondsPerHour = 3600

// ErrInvalidSelection is returned when a selection is neither "all" nor a
// non-negative hour count.
var ErrInvalidSelection = errors.New("invalid time filter selection")

// Selection is a parsed time-filter value.
type Selection struct {
	hours int
	all   bool
}

// Parse reads a filter control value. Surrounding whitespace is ignored.
func Parse(value string) (Selection, error) {
	v := strings.TrimSpace(value)
	if strings.EqualFold(v, All) {
		return Selection{all: true}, nil
	}
	hours, err := strconv.Atoi(v)
	if err != nil || hours < 0 {
		return Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, value)
	}
	return Selection{hours: hours}, nil
}

// IsAll reports whether the selection has no lower time bound.
func (s Selection) IsAll() bool {
	return s.all
}

// String returns the control value the selection was parsed from.
func (s Selection) String() string {
	if s.all {
		return All
	}
	return strconv.Itoa(s.hours)
}

// Window fixes the selection against a reference time. A window reaching
// past the representable epoch range saturates at math.MinInt64.
func (s Selection) Window(now time.Time) Window {
	w := Window{selection: s}
	if !s.all {
		w.threshold = threshold(now.Unix(), int64(s.hours))
	}
	return w
}

func threshold(now, hours int64) int64 {
	if hours > math.MaxInt64/secondsPerHour {
		return math.MinInt64
	}
	span := hours * secondsPerHour
	if now < math.MinInt64+span {
		return math.MinInt64
	}
	return now - span
}

// Window is a selection bound to a reference time.
type Window struct {
	selection Selection
	threshold int64
}

// Selection returns the selection the window was built from.
func (w Window) Selection() Selection {
	return w.selection
}

// Threshold is the oldest epoch time still inside the window. It is zero for
// the unbounded window.
func (w Window) Threshold() int64 {
	return w.threshold
}

// Visible reports whether m passes the window. Undated markers always pass.
func (w Window) Visible(m core.Marker) bool {
	if m.Undated() || w.selection.all {
		return true
	}
	return m.EpochTime >= w.threshold
}

// Apply returns the markers passing the window, in input order.
func (w Window) Apply(markers []core.Marker) []core.Marker {
	visible := make([]core.Marker, 0, len(markers))
	for _, m := range markers {
		if w.Visible(m) {
			visible = append(visible, m)
		}
	}
	return visible
}
