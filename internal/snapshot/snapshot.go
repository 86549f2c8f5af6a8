// Package snapshot captures the outline of a parsed hint file in a compact,
// deterministic CBOR form that the catalog stores and serves without
// re-reading the file.
package snapshot

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/starford/uhskit/internal/markup"
	"github.com/starford/uhskit/internal/parser"
	"github.com/starford/uhskit/internal/uhs"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// Snapshot is the outline of one file. Text is kept as stored, before
// decoration; binary payloads are reduced to their size.
type Snapshot struct {
	Title   string `json:"title"`
	Format  string `json:"format"`
	Version string `json:"version,omitempty"`
	Legacy  bool   `json:"legacy,omitempty"`
	CRC     string `json:"crc"`
	Nodes   int    `json:"nodes"`
	Root    Node   `json:"root"`
}

// Node mirrors uhs.Node. Spot and Addon carry the parent's per-child state.
type Node struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	ID          int    `json:"id,omitempty"`
	Link        *int   `json:"link,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Restriction string `json:"restriction,omitempty"`
	Decorator   string `json:"decorator,omitempty"`
	Group       bool   `json:"group,omitempty"`
	Spot        *Spot  `json:"spot,omitempty"`
	Addon       bool   `json:"addon,omitempty"`
	Children    []Node `json:"children,omitempty"`
}

// Spot is a hotspot zone with its overlay position.
type Spot struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	W        int `json:"w"`
	H        int `json:"h"`
	OverlayX int `json:"ox"`
	OverlayY int `json:"oy"`
}

// Capture builds the snapshot of a parse result.
func Capture(res *parser.Result) *Snapshot {
	s := &Snapshot{
		Title:   res.Root.Text(),
		Format:  res.Format,
		Version: res.Version,
		Legacy:  res.Root.Legacy(),
		CRC:     res.CRC.String(),
	}
	s.Root = capture(&res.Root.Node, &s.Nodes)
	return s
}

func capture(n *uhs.Node, count *int) Node {
	*count++
	out := Node{
		Type:      n.Type(),
		Text:      n.Text(),
		Decorator: markup.NameOf(n.Decorator()),
		Group:     n.IsGroup(),
	}
	if n.ID() > 0 {
		out.ID = n.ID()
	}
	if n.IsLink() {
		t := n.LinkTarget()
		out.Link = &t
	}
	if ref := n.Binary(); ref != nil {
		out.Kind = n.ContentKind().String()
		out.Size = ref.Length()
	}
	if r := n.Restriction(); r != uhs.RestrictNone {
		out.Restriction = r.String()
	}
	for i, c := range n.Children() {
		child := capture(c, count)
		if spot, ok := n.Spot(i); ok {
			child.Spot = &Spot{
				X: spot.ZoneX, Y: spot.ZoneY, W: spot.ZoneW, H: spot.ZoneH,
				OverlayX: spot.X, OverlayY: spot.Y,
			}
		}
		child.Addon = n.Addon(i)
		out.Children = append(out.Children, child)
	}
	return out
}

// Encode serializes s with Core Deterministic CBOR and compresses it.
func (s *Snapshot) Encode(c Compression) ([]byte, error) {
	data, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return pack(data, c)
}

// Decode reverses Encode.
func Decode(blob []byte) (*Snapshot, error) {
	data, err := unpack(blob)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := decMode.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &s, nil
}

// Walk visits every node depth first with its ancestors' titles.
func (s *Snapshot) Walk(fn func(n *Node, path []string)) {
	walk(&s.Root, nil, fn)
}

func walk(n *Node, path []string, fn func(*Node, []string)) {
	fn(n, path)
	if n.Text != "" {
		path = append(path[:len(path):len(path)], n.Text)
	}
	for i := range n.Children {
		walk(&n.Children[i], path, fn)
	}
}

// Find returns the node registered under id, or nil.
func (s *Snapshot) Find(id int) *Node {
	var found *Node
	s.Walk(func(n *Node, _ []string) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found
}
