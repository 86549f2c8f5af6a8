package assets_test

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/uhskit/internal/assets"
	"github.com/starford/uhskit/internal/testutil"
	"github.com/starford/uhskit/internal/uhs"
)

func hotspot(t *testing.T, root *uhs.RootNode) *uhs.Node {
	t.Helper()
	var hs *uhs.Node
	uhs.Walk(&root.Node, func(n *uhs.Node, _ int) bool {
		if hs == nil && n.Variant() == uhs.VariantHotSpot {
			hs = n
		}
		return true
	})
	if hs == nil {
		t.Fatal("no hotspot in sample")
	}
	return hs
}

func TestComposite_PlacesOverlay(t *testing.T) {
	img, err := assets.Composite(hotspot(t, testutil.SampleTree()))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Fatalf("bounds = %v", b)
	}
	inside := color.RGBAModel.Convert(img.At(3, 3)).(color.RGBA)
	if inside.B < 200 || inside.R > 50 {
		t.Errorf("overlay pixel = %+v, want blue", inside)
	}
	outside := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	if outside.R < 200 || outside.B > 50 {
		t.Errorf("base pixel = %+v, want red", outside)
	}
	past := color.RGBAModel.Convert(img.At(5, 5)).(color.RGBA)
	if past.R < 200 {
		t.Errorf("pixel past overlay = %+v, want red", past)
	}
}

func TestComposite_NoImage(t *testing.T) {
	if _, err := assets.Composite(uhs.NewHotSpotNode("HotSpot")); !errors.Is(err, assets.ErrNoImage) {
		t.Errorf("err = %v", err)
	}
}

func TestExtract(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	got, err := assets.Extract(testutil.SampleTree(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Map, its composite, the overlay and the sound.
	if len(got) != 4 {
		t.Fatalf("assets = %+v", got)
	}
	wantSuffix := []string{"001-dock-map.png", "001-dock-map-composite.png", "002-gangway-down.png", "003-foghorn.wav"}
	for i, a := range got {
		if !strings.HasSuffix(a.Path, wantSuffix[i]) {
			t.Errorf("asset %d = %s, want suffix %s", i, a.Path, wantSuffix[i])
		}
		if _, err := os.Stat(a.Path); err != nil {
			t.Errorf("asset %d not written: %v", i, err)
		}
	}
	if got[3].Kind != "audio" || got[1].Kind != "composite" {
		t.Errorf("kinds = %s, %s", got[3].Kind, got[1].Kind)
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		string(testutil.PNG(1, 1, color.White)): ".png",
		"GIF89a\x01\x00\x01\x00":                ".gif",
		"RIFF\x04\x00\x00\x00WAVE":              ".wav",
		"MThd\x00\x00\x00\x06":                  ".mid",
		"plain":                                 ".bin",
	}
	for data, want := range cases {
		if got := assets.Extension([]byte(data)); got != want {
			t.Errorf("Extension(%q) = %s, want %s", data[:4], got, want)
		}
	}
}
