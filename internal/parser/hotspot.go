package parser

import (
	"strconv"
	"strings"

	"github.com/starford/uhskit/internal/uhs"
)

// hotSpot parses hyperpng and gifa hunks: a main image followed by zones.
// Each zone line is followed by an overlay hunk or a nested hunk, whose ID
// moves back one line onto the zone line.
func (p *parser9x) hotSpot(h hunk) (*uhs.Node, int, error) {
	n := uhs.NewHotSpotNode("HotSpot")
	n.SetText(decodeText(p.line(h.title())))
	_ = n.SetChildren([]*uhs.Node{})
	if ref, _, ok := p.region(h.body(), h.kind); ok {
		n.SetBinary(ref, uhs.ContentImage)
	}

	cur := h.body() + 1
	for cur < h.end {
		spot, ok := parseZone(p.line(cur))
		if !ok {
			p.log.Error("bad hotspot zone", "line", cur)
			cur++
			continue
		}
		sub, err := p.header(cur + 1)
		if err != nil {
			return nil, 0, err
		}
		if sub.kind == "overlay" {
			child, at, ok := p.overlay(sub)
			if ok {
				spot.X, spot.Y = at[0], at[1]
			}
			_ = n.AddSpotChild(child, spot)
			cur = sub.end
			continue
		}
		child, next, err := p.parseHunk(cur + 1)
		if err != nil {
			return nil, 0, err
		}
		p.root.Register(child, child.ID()-1)
		_ = n.AddSpotChild(child, spot)
		cur = next
	}
	return n, cur, nil
}

// parseZone reads "x1 y1 x2 y2" with 1-based corners.
func parseZone(s string) (uhs.HotSpot, bool) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return uhs.HotSpot{}, false
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return uhs.HotSpot{}, false
		}
		v[i] = n
	}
	return uhs.HotSpot{
		ZoneX: v[0] - 1,
		ZoneY: v[1] - 1,
		ZoneW: v[2] - v[0],
		ZoneH: v[3] - v[1],
		X:     -1,
		Y:     -1,
	}, true
}

// overlay reads "N overlay", a title and "000000 offset length x y". The
// returned position is 0-based.
func (p *parser9x) overlay(h hunk) (*uhs.Node, [2]int, bool) {
	n := uhs.NewNode("Overlay")
	n.SetText(decodeText(p.line(h.title())))
	ref, rest, ok := p.region(h.body(), "overlay")
	if !ok {
		return n, [2]int{}, false
	}
	n.SetBinary(ref, uhs.ContentImage)
	if len(rest) < 2 {
		p.log.Error("overlay without position", "line", h.body())
		return n, [2]int{}, false
	}
	x, err1 := strconv.Atoi(rest[0])
	y, err2 := strconv.Atoi(rest[1])
	if err1 != nil || err2 != nil {
		p.log.Error("bad overlay position", "line", h.body())
		return n, [2]int{}, false
	}
	return n, [2]int{x - 1, y - 1}, true
}
