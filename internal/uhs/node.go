package uhs

import "fmt"

// ContentKind says what a node's payload is.
type ContentKind int

const (
	ContentString ContentKind = iota
	ContentImage
	ContentAudio
)

func (k ContentKind) String() string {
	switch k {
	case ContentString:
		return "string"
	case ContentImage:
		return "image"
	case ContentAudio:
		return "audio"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Restriction limits who may see a node.
type Restriction int

const (
	RestrictNone Restriction = iota
	RestrictNag
	RestrictRegOnly
)

func (r Restriction) String() string {
	switch r {
	case RestrictNone:
		return "none"
	case RestrictNag:
		return "nag"
	case RestrictRegOnly:
		return "regonly"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Variant discriminates the node shapes that carry extra per-child state.
type Variant int

const (
	VariantPlain Variant = iota
	VariantRoot
	VariantHotSpot
	VariantBatch
)

// HotSpot is the clickable zone of a hotspot child. X and Y place an overlay
// image and are -1 for children that are not overlays.
type HotSpot struct {
	ZoneX, ZoneY, ZoneW, ZoneH int
	X, Y                       int
}

// noOverlay is the spot recorded for children added without one.
var noOverlay = HotSpot{X: -1, Y: -1}

// Node is the universal tree element. A node is exactly one of: a link
// (LinkTarget >= 0, no children), a group (non-nil children) or a leaf.
//
// Text holds the content of string nodes and the caption of binary ones.
type Node struct {
	typ         string
	text        string
	binary      BinaryRef
	kind        ContentKind
	decorator   Decorator
	id          int
	linkTarget  int
	restriction Restriction
	children    []*Node
	revealed    int
	variant     Variant

	// Index-aligned with children; only used by the hotspot and batch variants.
	spots  []HotSpot
	addons []bool
}

// NewNode returns a plain leaf of the given type.
func NewNode(typ string) *Node {
	return &Node{typ: typ, id: -1, linkTarget: -1, revealed: -1}
}

// NewHotSpotNode returns a node whose children each carry a HotSpot.
func NewHotSpotNode(typ string) *Node {
	n := NewNode(typ)
	n.variant = VariantHotSpot
	return n
}

// NewBatchNode returns a node whose children each carry an addon flag.
func NewBatchNode(typ string) *Node {
	n := NewNode(typ)
	n.variant = VariantBatch
	return n
}

func (n *Node) Type() string             { return n.typ }
func (n *Node) Variant() Variant         { return n.variant }
func (n *Node) Text() string             { return n.text }
func (n *Node) Binary() BinaryRef        { return n.binary }
func (n *Node) ContentKind() ContentKind { return n.kind }
func (n *Node) Decorator() Decorator     { return n.decorator }
func (n *Node) ID() int                  { return n.id }
func (n *Node) LinkTarget() int          { return n.linkTarget }
func (n *Node) IsLink() bool             { return n.linkTarget >= 0 }
func (n *Node) IsGroup() bool            { return n.children != nil }
func (n *Node) Restriction() Restriction { return n.restriction }

// SetText sets the string content, or the caption of a binary node.
func (n *Node) SetText(s string) { n.text = s }

// SetBinary makes ref the payload of the node.
func (n *Node) SetBinary(ref BinaryRef, kind ContentKind) {
	n.binary = ref
	n.kind = kind
}

// SetDecorator sets the markup decorator; nil shows the text verbatim.
func (n *Node) SetDecorator(d Decorator) { n.decorator = d }

// SetRestriction is used by incentive processing.
func (n *Node) SetRestriction(r Restriction) { n.restriction = r }

// Fragments returns the decorated text, or the raw text as a single
// fragment when the node has no decorator.
func (n *Node) Fragments() []Fragment {
	if n.decorator != nil {
		return n.decorator.Decorate(n.text)
	}
	if n.text == "" {
		return nil
	}
	return []Fragment{NewFragment(n.text)}
}

// SetLinkTarget turns the node into a link, dropping any children. A
// negative target clears the link.
func (n *Node) SetLinkTarget(target int) error {
	if n.variant == VariantHotSpot {
		return ErrHotSpotLink
	}
	if target < 0 {
		n.linkTarget = -1
		return nil
	}
	n.children = nil
	n.spots = nil
	n.addons = nil
	n.revealed = -1
	n.linkTarget = target
	return nil
}

// Children returns the child slice. Callers must not modify it.
func (n *Node) Children() []*Node { return n.children }

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the child at i, or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// IndexOf returns the position of child by identity, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// AddChild appends child. Hotspot children get a zone-less spot and batch
// children are not addons.
func (n *Node) AddChild(child *Node) error {
	return n.insert(len(n.children), child, noOverlay, false)
}

// InsertChild inserts child at position i.
func (n *Node) InsertChild(i int, child *Node) error {
	return n.insert(i, child, noOverlay, false)
}

// AddSpotChild appends child with its hotspot zone.
func (n *Node) AddSpotChild(child *Node, spot HotSpot) error {
	return n.insert(len(n.children), child, spot, false)
}

// InsertSpotChild inserts child with its hotspot zone at position i.
func (n *Node) InsertSpotChild(i int, child *Node, spot HotSpot) error {
	return n.insert(i, child, spot, false)
}

// AddBatchChild appends child, flagging it as an addon that is revealed
// together with the child before it.
func (n *Node) AddBatchChild(child *Node, addon bool) error {
	return n.insert(len(n.children), child, noOverlay, addon)
}

func (n *Node) insert(i int, child *Node, spot HotSpot, addon bool) error {
	if n.IsLink() {
		return ErrLinkHasChildren
	}
	if i < 0 || i > len(n.children) {
		return ErrChildIndex
	}
	first := len(n.children) == 0
	n.children = insertAt(n.children, i, child)
	switch n.variant {
	case VariantHotSpot:
		n.spots = insertAt(n.spots, i, spot)
	case VariantBatch:
		n.addons = insertAt(n.addons, i, addon)
	}
	if first {
		n.revealed = 1
	}
	n.extendBatch()
	return nil
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// RemoveChild removes and returns the child at i.
func (n *Node) RemoveChild(i int) (*Node, error) {
	if i < 0 || i >= len(n.children) {
		return nil, ErrChildIndex
	}
	child := n.children[i]
	n.children = append(n.children[:i], n.children[i+1:]...)
	switch n.variant {
	case VariantHotSpot:
		n.spots = append(n.spots[:i], n.spots[i+1:]...)
	case VariantBatch:
		n.addons = append(n.addons[:i], n.addons[i+1:]...)
	}
	switch {
	case len(n.children) == 0:
		n.revealed = -1
	case n.revealed > len(n.children):
		n.revealed = len(n.children)
	}
	return child, nil
}

// SetChildren replaces all children. A nil slice makes the node a leaf; a
// non-nil one makes it a group with reset reveal state. Side tables reset
// to their defaults.
func (n *Node) SetChildren(children []*Node) error {
	if children != nil && n.IsLink() {
		return ErrLinkHasChildren
	}
	n.spots = nil
	n.addons = nil
	n.revealed = -1
	if children == nil {
		n.children = nil
		return nil
	}
	n.children = make([]*Node, 0, len(children))
	for _, c := range children {
		if err := n.AddChild(c); err != nil {
			return err
		}
	}
	return nil
}

// Spot returns the hotspot zone of the child at i.
func (n *Node) Spot(i int) (HotSpot, bool) {
	if n.variant != VariantHotSpot || i < 0 || i >= len(n.spots) {
		return HotSpot{}, false
	}
	return n.spots[i], true
}

// SpotOf returns the hotspot zone recorded for child.
func (n *Node) SpotOf(child *Node) (HotSpot, bool) {
	return n.Spot(n.IndexOf(child))
}

// Addon reports whether the child at i is revealed with its predecessor.
func (n *Node) Addon(i int) bool {
	if n.variant != VariantBatch || i < 0 || i >= len(n.addons) {
		return false
	}
	return n.addons[i]
}

// CurrentReveal returns how many children are revealed, or -1 when the
// node has none.
func (n *Node) CurrentReveal() int { return n.revealed }

// MaximumReveal returns the child count.
func (n *Node) MaximumReveal() int { return len(n.children) }

// SetCurrentReveal clamps amount to [0, MaximumReveal]. Batch nodes then
// keep revealing any addon children that directly follow.
func (n *Node) SetCurrentReveal(amount int) {
	if len(n.children) == 0 {
		return
	}
	n.revealed = max(0, min(amount, len(n.children)))
	n.extendBatch()
}

func (n *Node) extendBatch() {
	if n.variant != VariantBatch || n.revealed < 1 {
		return
	}
	for n.revealed < len(n.addons) && n.addons[n.revealed] {
		n.revealed++
	}
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of that node.
func Walk(n *Node, fn func(node *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		walk(c, depth+1, fn)
	}
}
