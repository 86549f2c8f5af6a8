// Package assets exports the images and sounds embedded in a hint tree and
// renders hotspot images with their overlays applied.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"

	"github.com/starford/uhskit/internal/uhs"
)

// ErrNoImage is returned by Composite for nodes without an image payload.
var ErrNoImage = errors.New("assets: node has no image")

// Asset is one exported file.
type Asset struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Caption string `json:"caption,omitempty"`
	Size    int64  `json:"size"`
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// slug turns a caption into a short file-name-safe stem.
func slug(caption string) string {
	s := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(caption), "-"), "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// Extension guesses a file extension from the payload's leading bytes.
func Extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/jpeg":
		return ".jpg"
	case "audio/wave":
		return ".wav"
	case "audio/midi":
		return ".mid"
	default:
		return ".bin"
	}
}

// Extract writes every binary payload below root into dir, numbered in tree
// order. Hotspot images with overlays also get a composited copy. A payload
// that cannot be read is logged and skipped.
func Extract(root *uhs.RootNode, dir string, logger *slog.Logger) ([]Asset, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "assets"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create %s: %w", dir, err)
	}

	var (
		out []Asset
		seq int
		err error
	)
	uhs.Walk(&root.Node, func(n *uhs.Node, _ int) bool {
		if err != nil {
			return false
		}
		ref := n.Binary()
		if ref == nil {
			return true
		}
		seq++
		data, rerr := uhs.ReadAll(ref)
		if rerr != nil {
			logger.Warn("payload unreadable", slog.String("caption", n.Text()), slog.String("error", rerr.Error()))
			return true
		}
		stem := fmt.Sprintf("%03d-%s", seq, slug(n.Text()))
		name := filepath.Join(dir, stem+Extension(data))
		if err = os.WriteFile(name, data, 0o644); err != nil {
			err = fmt.Errorf("assets: write %s: %w", name, err)
			return false
		}
		out = append(out, Asset{Path: name, Kind: n.ContentKind().String(), Caption: n.Text(), Size: int64(len(data))})

		if n.Variant() == uhs.VariantHotSpot && hasOverlay(n) {
			img, cerr := Composite(n)
			if cerr != nil {
				logger.Warn("composite failed", slog.String("caption", n.Text()), slog.String("error", cerr.Error()))
				return true
			}
			name := filepath.Join(dir, stem+"-composite.png")
			if err = imgio.Save(name, img, imgio.PNGEncoder()); err != nil {
				err = fmt.Errorf("assets: write %s: %w", name, err)
				return false
			}
			out = append(out, Asset{Path: name, Kind: "composite", Caption: n.Text()})
		}
		return true
	})
	if err != nil {
		return out, err
	}
	logger.Debug("assets extracted", slog.Int("count", len(out)), slog.String("dir", dir))
	return out, nil
}

func hasOverlay(n *uhs.Node) bool {
	for i, c := range n.Children() {
		if spot, ok := n.Spot(i); ok && spot.X >= 0 && c.ContentKind() == uhs.ContentImage {
			return true
		}
	}
	return false
}

// Composite draws every overlay child of a hotspot node onto its main
// image at the overlay position, as a reader shows it once all overlays are
// revealed.
func Composite(hs *uhs.Node) (*image.RGBA, error) {
	base, err := decode(hs)
	if err != nil {
		return nil, err
	}
	out := clone.AsRGBA(base)
	for i, c := range hs.Children() {
		spot, ok := hs.Spot(i)
		if !ok || spot.X < 0 || c.ContentKind() != uhs.ContentImage {
			continue
		}
		overlay, err := decode(c)
		if err != nil {
			return nil, fmt.Errorf("overlay %q: %w", c.Text(), err)
		}
		// blend works on equal bounds, so the overlay is placed on a
		// transparent layer the size of the base first.
		layer := image.NewRGBA(out.Bounds())
		at := image.Pt(spot.X, spot.Y).Add(out.Bounds().Min)
		draw.Draw(layer, overlay.Bounds().Sub(overlay.Bounds().Min).Add(at), overlay, overlay.Bounds().Min, draw.Src)
		out = blend.Normal(out, layer)
	}
	return out, nil
}

func decode(n *uhs.Node) (image.Image, error) {
	if n.Binary() == nil || n.ContentKind() != uhs.ContentImage {
		return nil, ErrNoImage
	}
	data, err := uhs.ReadAll(n.Binary())
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("assets: decode %q: %w", n.Text(), err)
	}
	return img, nil
}
