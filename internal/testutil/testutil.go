// Package testutil provides shared test helpers for setting up libraries,
// catalogs and sample hint files.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/starford/uhskit/internal/cipher"
	"github.com/starford/uhskit/internal/index"
	"github.com/starford/uhskit/internal/storage"
	"github.com/starford/uhskit/internal/uhs"
	"github.com/starford/uhskit/internal/writer"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "uhskit-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary library directory with a storage provider.
func TestLibrary(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Sample88a builds a one-subject, one-question 88a file.
func Sample88a(title, subject, question, hint string) []byte {
	return []byte("UHS\n" + title + "\n3\n4\n" + subject + "\n3\n" + question + "\n5\n" +
		cipher.SimpleEncrypt(hint) + "\nCredits\n")
}

// Sample titles of the tree built by SampleTree.
const (
	SampleTitle    = "Harbor Mystery"
	SampleQuestion = "How do I board the ferry?"
	SampleMap      = "Dock map"
	SampleSound    = "Foghorn"
)

// SampleTree builds a small 9x tree: a two-hint question, a comment, a
// hotspot map with one overlay and one link zone, and a sound.
func SampleTree() *uhs.RootNode {
	root := uhs.NewRootNode()
	root.SetText(SampleTitle)
	master := titled(uhs.NewNode("Subject"), SampleTitle)
	_ = root.AddChild(master)

	q := titled(uhs.NewNode("Hint"), SampleQuestion)
	_ = q.AddChild(titled(uhs.NewNode("HintData"), "Talk to the harbor master."))
	_ = q.AddChild(titled(uhs.NewNode("HintData"), "Show him the ticket."))
	root.Register(q, 2)

	note := titled(uhs.NewNode("Comment"), "About the tide")
	_ = note.AddChild(titled(uhs.NewNode("CommentData"), "The tide turns at #h+noon#h-."))

	hs := titled(uhs.NewHotSpotNode("HotSpot"), SampleMap)
	hs.SetBinary(uhs.Bytes(PNG(8, 8, color.RGBA{R: 255, A: 255})), uhs.ContentImage)
	overlay := titled(uhs.NewNode("Overlay"), "Gangway down")
	overlay.SetBinary(uhs.Bytes(PNG(2, 2, color.RGBA{B: 255, A: 255})), uhs.ContentImage)
	_ = hs.AddSpotChild(overlay, uhs.HotSpot{ZoneX: 0, ZoneY: 0, ZoneW: 4, ZoneH: 4, X: 3, Y: 3})
	zone := titled(uhs.NewNode("Link"), "Ferry")
	_ = zone.SetLinkTarget(2)
	_ = hs.AddSpotChild(zone, uhs.HotSpot{ZoneX: 5, ZoneY: 5, ZoneW: 2, ZoneH: 2, X: -1, Y: -1})

	sound := titled(uhs.NewNode("Sound"), SampleSound)
	sound.SetBinary(uhs.Bytes("RIFF\x04\x00\x00\x00WAVE"), uhs.ContentAudio)

	for _, c := range []*uhs.Node{q, note, hs, sound} {
		_ = master.AddChild(c)
	}
	version := titled(uhs.NewNode("Version"), "96a")
	_ = version.AddChild(titled(uhs.NewNode("VersionData"), "Sample file."))
	_ = root.AddChild(version)
	return root
}

// Sample9x writes SampleTree as a 9x file.
func Sample9x(t *testing.T) []byte {
	t.Helper()
	data, err := writer.Write9x(SampleTree())
	if err != nil {
		t.Fatalf("Write9x: %v", err)
	}
	return data
}

// PNG encodes a solid w×h image.
func PNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func titled(n *uhs.Node, text string) *uhs.Node {
	n.SetText(text)
	return n
}
