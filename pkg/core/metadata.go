package core

import (
	"maps"
	"strings"
)

// Color is one of the fixed note palette entries.
type Color string

const (
	ColorYellow Color = "yellow"
	ColorPink   Color = "pink"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorPurple Color = "purple"
)

// DefaultColor is used for notes created without a color and for unknown
// stored values.
const DefaultColor = ColorYellow

// Palette lists every valid color in display order.
var Palette = []Color{ColorYellow, ColorPink, ColorBlue, ColorGreen, ColorOrange, ColorPurple}

// Valid reports whether c is part of the palette.
func (c Color) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

// OrDefault returns c, or DefaultColor when c is not a palette entry.
func (c Color) OrDefault() Color {
	if c.Valid() {
		return c
	}
	return DefaultColor
}

// ParseColor maps a stored or user supplied string to a palette color.
func ParseColor(s string) Color {
	return Color(strings.ToLower(strings.TrimSpace(s))).OrDefault()
}

// Kind discriminates the kind of content an anchor carries.
type Kind string

// KindNote is the only kind written today. Unknown kinds read from storage
// are preserved as-is.
const KindNote Kind = "note"

// Reserved keys of the flat storage encoding.
const (
	KeyText  = "text"
	KeyColor = "color"
	KeyKind  = "kind"
)

// Metadata is the typed attribute set of an anchor. Known attributes have
// fields; anything else lands in Extra so newer records survive a round trip
// through this version untouched.
type Metadata struct {
	Text  string
	Color Color
	Kind  Kind
	Extra map[string]string
}

// Attribute is a single typed metadata change. The set of implementations
// is closed: TextAttr, ColorAttr, KindAttr and ExtensionAttr.
type Attribute interface {
	applyTo(m *Metadata)
}

// TextAttr sets the note text.
type TextAttr string

// ColorAttr sets the note color.
type ColorAttr Color

// KindAttr sets the content discriminator.
type KindAttr Kind

// ExtensionAttr sets an attribute this version does not know about. Keys
// that collide with a reserved key are ignored.
type ExtensionAttr struct {
	Key   string
	Value string
}

func (a TextAttr) applyTo(m *Metadata)  { m.Text = string(a) }
func (a ColorAttr) applyTo(m *Metadata) { m.Color = Color(a).OrDefault() }
func (a KindAttr) applyTo(m *Metadata)  { m.Kind = Kind(a) }

func (a ExtensionAttr) applyTo(m *Metadata) {
	if a.Key == "" || isReserved(a.Key) {
		return
	}
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[a.Key] = a.Value
}

// With returns a copy of m with attrs applied in order.
func (m Metadata) With(attrs ...Attribute) Metadata {
	out := m.Clone()
	for _, a := range attrs {
		if a != nil {
			a.applyTo(&out)
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = maps.Clone(m.Extra)
	}
	return out
}

// ToMap flattens m into the storage encoding.
func (m Metadata) ToMap() map[string]string {
	out := make(map[string]string, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out[KeyText] = m.Text
	out[KeyColor] = string(m.Color.OrDefault())
	kind := m.Kind
	if kind == "" {
		kind = KindNote
	}
	out[KeyKind] = string(kind)
	return out
}

// MetadataFromMap reads the storage encoding back into typed metadata.
func MetadataFromMap(raw map[string]string) Metadata {
	m := Metadata{
		Text:  raw[KeyText],
		Color: ParseColor(raw[KeyColor]),
		Kind:  Kind(raw[KeyKind]),
	}
	if m.Kind == "" {
		m.Kind = KindNote
	}
	for k, v := range raw {
		if isReserved(k) {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[k] = v
	}
	return m
}

func isReserved(key string) bool {
	return key == KeyText || key == KeyColor || key == KeyKind
}
