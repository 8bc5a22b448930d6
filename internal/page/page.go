// Package page reads and rewrites the HTML document hosting the map.
package page

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/markermap/markermap/pkg/core"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MountIDPrefix identifies the element the map is mounted into.
	MountIDPrefix = "map_"
	// TimeFilterID is the id of the time window <select>.
	TimeFilterID = "time-filter"

	attrCenterLat = "data-center-lat"
	attrCenterLng = "data-center-lng"
	attrGenerated = "data-markermap-generated"
)

// MountError reports a missing, ambiguous or malformed mount element.
type MountError struct {
	Reason string
	Err    error
}

func (e *MountError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("map container: %s: %v", e.Reason, e.Err)
	}
	return "map container: " + e.Reason
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// Document is a parsed host page.
type Document struct {
	root *html.Node
}

// Mount is the element the map is mounted into.
type Mount struct {
	ID     string
	Center core.LatLng
	node   *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Document{root: root}, nil
}

// FindMount returns the single element whose id starts with MountIDPrefix,
// with its center read from the data-center-lat/lng attributes.
func (d *Document) FindMount() (*Mount, error) {
	var found []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && strings.HasPrefix(attr(n, "id"), MountIDPrefix) {
			found = append(found, n)
		}
		return true
	})

	switch len(found) {
	case 0:
		return nil, &MountError{Reason: "not found"}
	case 1:
	default:
		return nil, &MountError{Reason: fmt.Sprintf("%d candidates with id prefix %q", len(found), MountIDPrefix)}
	}

	n := found[0]
	lat, err := strconv.ParseFloat(strings.TrimSpace(attr(n, attrCenterLat)), 64)
	if err != nil {
		return nil, &MountError{Reason: "bad " + attrCenterLat, Err: err}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(attr(n, attrCenterLng)), 64)
	if err != nil {
		return nil, &MountError{Reason: "bad " + attrCenterLng, Err: err}
	}

	return &Mount{
		ID:     attr(n, "id"),
		Center: core.LatLng{Lat: lat, Lng: lng},
		node:   n,
	}, nil
}

// TimeFilterValue returns the selected value of the time filter control.
// Without a selected option the first option counts, as in a browser; ok is
// false when the page has no usable control.
func (d *Document) TimeFilterValue() (value string, ok bool) {
	sel := d.byID(TimeFilterID)
	if sel == nil {
		return "", false
	}
	options := optionsOf(sel)
	if len(options) == 0 {
		return "", false
	}
	chosen := options[0]
	for _, o := range options {
		if hasAttr(o, "selected") {
			chosen = o
			break
		}
	}
	return optionValue(chosen), true
}

// SelectTimeFilter marks the option with the given value as selected. It
// reports whether such an option exists.
func (d *Document) SelectTimeFilter(value string) bool {
	sel := d.byID(TimeFilterID)
	if sel == nil {
		return false
	}
	options := optionsOf(sel)
	matched := false
	for _, o := range options {
		if optionValue(o) == value && !matched {
			setAttr(o, "selected", "")
			matched = true
			continue
		}
		removeAttr(o, "selected")
	}
	return matched
}

// Inject places markup right after the mount element, replacing markup from
// a previous Inject for the same mount.
func (d *Document) Inject(m *Mount, markup string) error {
	parent := m.node.Parent
	if parent == nil {
		return fmt.Errorf("mount %q is detached", m.ID)
	}

	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && attr(c, attrGenerated) == m.ID {
			parent.RemoveChild(c)
		}
		c = next
	}

	wrapper := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: attrGenerated, Val: m.ID}},
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), wrapper)
	if err != nil {
		return fmt.Errorf("failed to parse map markup: %w", err)
	}
	for _, n := range nodes {
		wrapper.AppendChild(n)
	}
	parent.InsertBefore(wrapper, m.node.NextSibling)
	return nil
}

// Render writes the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) byID(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits nodes depth first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func optionsOf(sel *html.Node) []*html.Node {
	var options []*html.Node
	walk(sel, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			options = append(options, n)
		}
		return true
	})
	return options
}

// optionValue falls back to the option text like the DOM does.
func optionValue(o *html.Node) string {
	for _, a := range o.Attr {
		if a.Key == "value" {
			return a.Val
		}
	}
	var b strings.Builder
	walk(o, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
