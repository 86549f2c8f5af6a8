package hintservice

import (
	"github.com/starford/uhskit/internal/markup"
	"github.com/starford/uhskit/internal/snapshot"
	"github.com/starford/uhskit/internal/uhs"
)

// FragmentView is one decorated run of text.
type FragmentView struct {
	Text       string   `json:"text"`
	Attributes []string `json:"attributes,omitempty"`
}

// NodeView is a node as a reader sees it: its title and the children revealed
// so far.
type NodeView struct {
	ID          int            `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Fragments   []FragmentView `json:"fragments,omitempty"`
	Revealed    int            `json:"revealed"`
	Maximum     int            `json:"maximum"`
	Restriction string         `json:"restriction,omitempty"`
	Children    []ChildView    `json:"children"`
}

// ChildView is a revealed child. Link is the target ID of link children;
// Binary is set for image and audio children.
type ChildView struct {
	Index       int            `json:"index"`
	ID          int            `json:"id,omitempty"`
	Type        string         `json:"type"`
	Text        string         `json:"text"`
	Fragments   []FragmentView `json:"fragments,omitempty"`
	Group       bool           `json:"group,omitempty"`
	Link        *int           `json:"link,omitempty"`
	Restriction string         `json:"restriction,omitempty"`
	Addon       bool           `json:"addon,omitempty"`
	Spot        *snapshot.Spot `json:"spot,omitempty"`
	Binary      *BinaryInfo    `json:"binary,omitempty"`
}

// BinaryInfo describes a binary payload without its bytes.
type BinaryInfo struct {
	Kind    string `json:"kind"`
	Caption string `json:"caption,omitempty"`
	Size    int64  `json:"size"`
}

func fragmentsOf(n *uhs.Node) []FragmentView {
	frags := n.Fragments()
	out := make([]FragmentView, 0, len(frags))
	for _, f := range frags {
		out = append(out, FragmentView{Text: f.Text(), Attributes: f.Attributes()})
	}
	return out
}

func restrictionOf(n *uhs.Node) string {
	if n.Restriction() == uhs.RestrictNone {
		return ""
	}
	return n.Restriction().String()
}

// viewOf renders n with its currently revealed children. id is the ID the
// node was reached by, which differs from n.ID for wrapped leaves.
func viewOf(n *uhs.Node, id int) NodeView {
	v := NodeView{
		ID:          id,
		Type:        n.Type(),
		Title:       markup.Plain(n.Fragments()),
		Fragments:   fragmentsOf(n),
		Revealed:    max(n.CurrentReveal(), 0),
		Maximum:     n.MaximumReveal(),
		Restriction: restrictionOf(n),
		Children:    []ChildView{},
	}
	for i := 0; i < v.Revealed; i++ {
		c := n.Child(i)
		cv := ChildView{
			Index:       i,
			Type:        c.Type(),
			Text:        markup.Plain(c.Fragments()),
			Fragments:   fragmentsOf(c),
			Group:       c.IsGroup(),
			Restriction: restrictionOf(c),
			Addon:       n.Addon(i),
		}
		if c.ID() > 0 {
			cv.ID = c.ID()
		}
		if c.IsLink() {
			target := c.LinkTarget()
			cv.Link = &target
		}
		if spot, ok := n.Spot(i); ok {
			cv.Spot = &snapshot.Spot{
				X: spot.ZoneX, Y: spot.ZoneY, W: spot.ZoneW, H: spot.ZoneH,
				OverlayX: spot.X, OverlayY: spot.Y,
			}
		}
		if ref := c.Binary(); ref != nil {
			cv.Binary = &BinaryInfo{Kind: c.ContentKind().String(), Caption: c.Text(), Size: ref.Length()}
		}
		v.Children = append(v.Children, cv)
	}
	return v
}
