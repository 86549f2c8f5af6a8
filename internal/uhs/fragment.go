package uhs

import "slices"

// Decoration names carried by fragments.
const (
	AttrMonospaced = "Monospaced"
	AttrHyperlink  = "Hyperlink"
)

// Decorator turns raw node text into styled fragments.
type Decorator interface {
	Decorate(raw string) []Fragment
}

// Fragment is a run of text with the decorations active over it.
type Fragment struct {
	text  string
	attrs []string
}

// NewFragment copies attrs so the fragment cannot change afterwards.
func NewFragment(text string, attrs ...string) Fragment {
	return Fragment{text: text, attrs: slices.Clone(attrs)}
}

// Text returns the fragment text.
func (f Fragment) Text() string { return f.text }

// Attributes returns a copy of the ordered decoration names.
func (f Fragment) Attributes() []string { return slices.Clone(f.attrs) }

// Has reports whether attr is active over this fragment.
func (f Fragment) Has(attr string) bool { return slices.Contains(f.attrs, attr) }
