// Package toggle is the layer toggle list shown next to the map: one
// checkbox per marker category. The list owns its markup and checkbox state
// and reports changes through a handler.
package toggle

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
)

var (
	// ErrNotReady is returned when the list is used before Build completes.
	ErrNotReady = errors.New("toggle list is not built")
	// ErrUnknownCategory is returned for a category without an entry.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrAlreadyBuilt is returned when Build is called twice.
	ErrAlreadyBuilt = errors.New("toggle list is already built")
)

// Entry is one checkbox row.
type Entry struct {
	Category string
	IconURL  string
	Checked  bool
}

// Handler receives checkbox changes.
type Handler func(category string, checked bool)

// List is the toggle list component.
type List struct {
	id      string
	entries []Entry
	index   map[string]int
	handler Handler
	ready   bool
}

// New creates an empty list whose root element gets the given id.
func New(id string) *List {
	return &List{
		id:    id,
		index: make(map[string]int),
	}
}

// ID returns the root element id
func (l *List) ID() string {
	return l.id
}

// Build creates one checked entry per category, in order, then calls onReady
// exactly once. iconFor supplies the representative icon of each category.
func (l *List) Build(categories []string, iconFor func(category string) string, onReady func(*List)) error {
	if l.ready {
		return ErrAlreadyBuilt
	}
	for _, c := range categories {
		if _, dup := l.index[c]; dup {
			continue
		}
		l.index[c] = len(l.entries)
		l.entries = append(l.entries, Entry{Category: c, IconURL: iconFor(c), Checked: true})
	}
	l.ready = true
	if onReady != nil {
		onReady(l)
	}
	return nil
}

// Ready reports whether Build has completed.
func (l *List) Ready() bool {
	return l.ready
}

// OnChange installs the change handler, replacing any previous one.
func (l *List) OnChange(h Handler) {
	l.handler = h
}

// SetChecked changes a checkbox and notifies the handler when the state
// actually changes.
func (l *List) SetChecked(category string, checked bool) error {
	if !l.ready {
		return ErrNotReady
	}
	i, ok := l.index[category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if l.entries[i].Checked == checked {
		return nil
	}
	l.entries[i].Checked = checked
	if l.handler != nil {
		l.handler(category, checked)
	}
	return nil
}

// Checked reports the state of a category's checkbox.
func (l *List) Checked(category string) (checked bool, ok bool) {
	i, ok := l.index[category]
	if !ok {
		return false, false
	}
	return l.entries[i].Checked, true
}

// Entries returns a copy of the rows in display order.
func (l *List) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

var listTemplate = template.Must(template.New("toggle").Parse(
	`<div id="{{.ID}}" class="markermap-layer-control custom-layer-control" style="display: none;">
<div class="markermap-layer-control-overlays">
{{- range $i, $e := .Entries}}
<label>
<input type="checkbox" id="{{$.ID}}-layer-{{$i}}" class="markermap-layer-selector" name="{{$e.Category}}" data-category="{{$e.Category}}"{{if $e.Checked}} checked{{end}}>
<span><img src="{{$e.IconURL}}" width="24" height="24" alt="" style="vertical-align: middle; margin-right: 5px;"> {{$e.Category}}</span>
</label>
{{- end}}
</div>
</div>`))

// Render returns the list markup. The root starts hidden; the map shows it
// once it is attached as a control.
func (l *List) Render() (template.HTML, error) {
	if !l.ready {
		return "", ErrNotReady
	}
	var buf bytes.Buffer
	err := listTemplate.Execute(&buf, struct {
		ID      string
		Entries []Entry
	}{ID: l.id, Entries: l.entries})
	if err != nil {
		return "", fmt.Errorf("failed to render toggle list: %w", err)
	}
	return template.HTML(buf.String()), nil
}
