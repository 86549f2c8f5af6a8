package uhs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func leaf(text string) *Node {
	n := NewNode("HintData")
	n.SetText(text)
	return n
}

func TestNode_LeafHasNoReveal(t *testing.T) {
	n := leaf("x")
	if n.IsGroup() || n.IsLink() {
		t.Fatal("fresh node should be a plain leaf")
	}
	if n.CurrentReveal() != -1 {
		t.Errorf("reveal = %d, want -1", n.CurrentReveal())
	}
	n.SetCurrentReveal(3)
	if n.CurrentReveal() != -1 {
		t.Errorf("reveal on leaf changed to %d", n.CurrentReveal())
	}
}

func TestNode_FirstChildResetsReveal(t *testing.T) {
	n := NewNode("Hint")
	_ = n.AddChild(leaf("a"))
	if !n.IsGroup() || n.CurrentReveal() != 1 {
		t.Fatalf("group=%v reveal=%d, want group with reveal 1", n.IsGroup(), n.CurrentReveal())
	}
	_ = n.AddChild(leaf("b"))
	if n.CurrentReveal() != 1 {
		t.Errorf("second child changed reveal to %d", n.CurrentReveal())
	}
}

func TestNode_SetCurrentRevealClamps(t *testing.T) {
	n := NewNode("Hint")
	for _, s := range []string{"a", "b", "c"} {
		_ = n.AddChild(leaf(s))
	}
	for _, tc := range []struct{ in, want int }{
		{-5, 0}, {0, 0}, {2, 2}, {3, 3}, {99, 3},
	} {
		n.SetCurrentReveal(tc.in)
		if got := n.CurrentReveal(); got != tc.want {
			t.Errorf("SetCurrentReveal(%d) -> %d, want %d", tc.in, got, tc.want)
		}
		if n.CurrentReveal() < 0 || n.CurrentReveal() > n.MaximumReveal() {
			t.Errorf("reveal %d outside [0,%d]", n.CurrentReveal(), n.MaximumReveal())
		}
	}
}

func TestNode_LinkClearsChildren(t *testing.T) {
	n := NewNode("Link")
	_ = n.AddChild(leaf("a"))
	if err := n.SetLinkTarget(42); err != nil {
		t.Fatalf("SetLinkTarget: %v", err)
	}
	if n.IsGroup() || n.ChildCount() != 0 {
		t.Error("link target should clear children")
	}
	if !n.IsLink() || n.LinkTarget() != 42 {
		t.Errorf("link = %v target = %d", n.IsLink(), n.LinkTarget())
	}
	if err := n.AddChild(leaf("b")); !errors.Is(err, ErrLinkHasChildren) {
		t.Errorf("AddChild on link: err = %v, want ErrLinkHasChildren", err)
	}
}

func TestHotSpot_RejectsLink(t *testing.T) {
	n := NewHotSpotNode("HotSpot")
	if err := n.SetLinkTarget(3); !errors.Is(err, ErrHotSpotLink) {
		t.Errorf("err = %v, want ErrHotSpotLink", err)
	}
	if n.IsLink() {
		t.Error("hotspot became a link")
	}
}

func TestHotSpot_SpotsStayAligned(t *testing.T) {
	n := NewHotSpotNode("HotSpot")
	overlayA, overlayB, link := leaf("A"), leaf("B"), NewNode("Link")
	_ = link.SetLinkTarget(7)

	spotA := HotSpot{ZoneX: 1, ZoneY: 2, ZoneW: 3, ZoneH: 4, X: 5, Y: 6}
	spotB := HotSpot{ZoneX: 10, ZoneY: 20, ZoneW: 30, ZoneH: 40, X: 50, Y: 60}
	spotL := HotSpot{ZoneX: 7, ZoneY: 8, ZoneW: 9, ZoneH: 10, X: -1, Y: -1}

	_ = n.AddSpotChild(overlayB, spotB)
	_ = n.InsertSpotChild(0, link, spotL)
	_ = n.InsertSpotChild(1, overlayA, spotA)

	for child, want := range map[*Node]HotSpot{overlayA: spotA, overlayB: spotB, link: spotL} {
		got, ok := n.SpotOf(child)
		if !ok || got != want {
			t.Errorf("SpotOf(%q) = %+v, want %+v", child.Text(), got, want)
		}
	}

	if _, err := n.RemoveChild(0); err != nil {
		t.Fatal(err)
	}
	if got, _ := n.SpotOf(overlayB); got != spotB {
		t.Errorf("after remove SpotOf(B) = %+v", got)
	}
	if _, ok := n.SpotOf(link); ok {
		t.Error("removed child still has a spot")
	}
}

func TestHotSpot_PlainAddGetsNoOverlay(t *testing.T) {
	n := NewHotSpotNode("HotSpot")
	c := leaf("x")
	_ = n.AddChild(c)
	spot, ok := n.SpotOf(c)
	if !ok || spot.X != -1 || spot.Y != -1 {
		t.Errorf("spot = %+v", spot)
	}
}

func TestBatch_RevealCascadesThroughAddons(t *testing.T) {
	n := NewBatchNode("NestHint")
	_ = n.AddBatchChild(leaf("first"), false)
	_ = n.AddBatchChild(leaf("first addon"), true)
	_ = n.AddBatchChild(leaf("second"), false)
	_ = n.AddBatchChild(leaf("second addon 1"), true)
	_ = n.AddBatchChild(leaf("second addon 2"), true)
	_ = n.AddBatchChild(leaf("third"), false)

	if got := n.CurrentReveal(); got != 2 {
		t.Errorf("initial reveal = %d, want 2 (first plus its addon)", got)
	}
	n.SetCurrentReveal(3)
	if got := n.CurrentReveal(); got != 5 {
		t.Errorf("reveal after 3 = %d, want 5", got)
	}
	n.SetCurrentReveal(6)
	if got := n.CurrentReveal(); got != 6 {
		t.Errorf("reveal after 6 = %d, want 6", got)
	}
	n.SetCurrentReveal(0)
	if got := n.CurrentReveal(); got != 0 {
		t.Errorf("reveal after 0 = %d, want 0", got)
	}
}

func TestRoot_LinkWrapsLeaves(t *testing.T) {
	root := NewRootNode()
	target := leaf("some text")
	_ = root.AddChild(target)
	root.Register(target, 12)

	wrapped := root.Link(12)
	if wrapped == nil || !wrapped.IsGroup() {
		t.Fatal("Link should return a group")
	}
	if wrapped.ChildCount() != 1 || wrapped.Child(0) != target {
		t.Error("wrapper must hold the original node as its only child")
	}
	if wrapped.Text() != "" {
		t.Errorf("wrapper title = %q, want empty", wrapped.Text())
	}
	if root.NodeByLinkID(12) != target {
		t.Error("NodeByLinkID must return the raw node")
	}
}

func TestRoot_LinkReturnsGroupsDirectly(t *testing.T) {
	root := NewRootNode()
	group := NewNode("Subject")
	_ = group.AddChild(leaf("x"))
	root.Register(group, 3)
	if root.Link(3) != group {
		t.Error("groups should not be wrapped")
	}
	if root.Link(4) != nil {
		t.Error("unknown id should resolve to nil")
	}
}

func TestRoot_ReRegisterMovesID(t *testing.T) {
	root := NewRootNode()
	n := leaf("x")
	root.Register(n, 5)
	root.Register(n, 4)
	if root.NodeByLinkID(5) != nil {
		t.Error("old id still registered")
	}
	if root.NodeByLinkID(4) != n || n.ID() != 4 {
		t.Error("new id not registered")
	}

	other := leaf("y")
	root.Register(other, 4)
	if n.ID() != -1 {
		t.Errorf("displaced node id = %d, want -1", n.ID())
	}
	if got := root.LinkIDs(); len(got) != 1 || got[0] != 4 {
		t.Errorf("LinkIDs = %v", got)
	}
}

func TestBytes_OpenTwice(t *testing.T) {
	ref := Bytes("payload")
	for i := 0; i < 2; i++ {
		got, err := ReadAll(ref)
		if err != nil || string(got) != "payload" {
			t.Fatalf("read %d: %q, %v", i, got, err)
		}
	}
	if ref.Length() != 7 {
		t.Errorf("Length = %d", ref.Length())
	}
}

func TestFileRegion_ReadsWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	ref := FileRegion{Path: path, Offset: 3, Size: 4}

	a, err := ref.Open()
	if err != nil {
		t.Fatal(err)
	}
	b, err := ref.Open()
	if err != nil {
		t.Fatal(err)
	}
	gotA, _ := io.ReadAll(a)
	gotB, _ := io.ReadAll(b)
	_ = a.Close()
	_ = b.Close()
	if string(gotA) != "3456" || string(gotB) != "3456" {
		t.Errorf("got %q and %q, want 3456", gotA, gotB)
	}
}

func TestFragments_UndecoratedIsVerbatim(t *testing.T) {
	n := leaf("#p-raw#p+")
	frags := n.Fragments()
	if len(frags) != 1 || frags[0].Text() != "#p-raw#p+" || len(frags[0].Attributes()) != 0 {
		t.Errorf("fragments = %+v", frags)
	}
}
