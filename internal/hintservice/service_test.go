package hintservice_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/uhskit/internal/apperr"
	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/index"
	"github.com/starford/uhskit/internal/snapshot"
	"github.com/starford/uhskit/internal/testutil"
)

func newService(t *testing.T) *hintservice.Service {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	if err := store.Write("harbor.uhs", testutil.Sample9x(t)); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("old/cave.uhs", testutil.Sample88a("Cave", "Entrance", "Where is the lamp?", "On the shelf.")); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := hintservice.NewService(store, db, index.Options{Workers: 2, Compression: snapshot.CompressionLZ4}, logger)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

// idOf finds the ID of the first outline node titled text.
func idOf(t *testing.T, svc *hintservice.Service, path, text string) int {
	t.Helper()
	snap, err := svc.Outline(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	id := 0
	snap.Walk(func(n *snapshot.Node, _ []string) {
		if id == 0 && n.Text == text {
			id = n.ID
		}
	})
	if id == 0 {
		t.Fatalf("no node titled %q", text)
	}
	return id
}

func TestListFiles(t *testing.T) {
	svc := newService(t)
	files, total, err := svc.ListFiles(context.Background(), 10, 0, "title")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || files[0].Title != "Cave" || files[1].Title != testutil.SampleTitle {
		t.Errorf("files = %+v", files)
	}
	if files[1].Format != "9x" || files[1].Version != "96a" || files[1].CRC != "valid" {
		t.Errorf("9x file = %+v", files[1])
	}
	if _, _, err := svc.ListFiles(context.Background(), 10, 0, "bogus"); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestListFiles_CatalogFailureIsNotBadInput(t *testing.T) {
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	svc := hintservice.NewService(store, db, index.Options{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	_ = db.Close()

	_, _, err := svc.ListFiles(context.Background(), 10, 0, "path")
	if err == nil {
		t.Fatal("expected an error from a closed catalog")
	}
	if errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("catalog failure reported as bad input: %v", err)
	}
}

func TestNode_RevealsOneAtATime(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	id := idOf(t, svc, "harbor.uhs", testutil.SampleQuestion)

	v, err := svc.Node(ctx, "harbor.uhs", id, -1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Title != testutil.SampleQuestion || v.Revealed != 1 || v.Maximum != 2 || len(v.Children) != 1 {
		t.Fatalf("view = %+v", v)
	}
	if v.Children[0].Text != "Talk to the harbor master." {
		t.Errorf("first hint = %q", v.Children[0].Text)
	}

	v, _ = svc.Node(ctx, "harbor.uhs", id, 9)
	if v.Revealed != 2 || v.Children[1].Text != "Show him the ticket." {
		t.Errorf("full reveal = %+v", v)
	}
}

func TestNode_RootAndHotSpot(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	root, err := svc.Node(ctx, "harbor.uhs", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if root.Title != testutil.SampleTitle || len(root.Children) != root.Maximum {
		t.Errorf("root = %+v", root)
	}

	id := idOf(t, svc, "harbor.uhs", testutil.SampleMap)
	hs, err := svc.Node(ctx, "harbor.uhs", id, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hs.Children) != 2 {
		t.Fatalf("zones = %+v", hs.Children)
	}
	overlay, zone := hs.Children[0], hs.Children[1]
	if overlay.Binary == nil || overlay.Binary.Kind != "image" || overlay.Spot.OverlayX != 3 {
		t.Errorf("overlay = %+v", overlay)
	}
	if zone.Link == nil || zone.Spot.X != 5 {
		t.Errorf("zone = %+v", zone)
	}
}

func TestNode_Errors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if _, err := svc.Node(ctx, "harbor.uhs", 99999, -1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
	if _, err := svc.Node(ctx, "nope.uhs", 0, -1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := svc.Node(ctx, "../escape.uhs", 0, -1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("escape: %v", err)
	}
}

func TestBinary(t *testing.T) {
	svc := newService(t)
	id := idOf(t, svc, "harbor.uhs", testutil.SampleSound)
	rc, info, err := svc.Binary(context.Background(), "harbor.uhs", id, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "RIFF\x04\x00\x00\x00WAVE" || info.Kind != "audio" || info.Size != int64(len(data)) {
		t.Errorf("binary = %q %+v", data, info)
	}

	mapID := idOf(t, svc, "harbor.uhs", testutil.SampleMap)
	rc, info, err = svc.Binary(context.Background(), "harbor.uhs", mapID, 0)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if info.Caption != "Gangway down" {
		t.Errorf("overlay info = %+v", info)
	}

	qID := idOf(t, svc, "harbor.uhs", testutil.SampleQuestion)
	if _, _, err := svc.Binary(context.Background(), "harbor.uhs", qID, -1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("text node binary: %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc := newService(t)
	results, err := svc.Search(context.Background(), "lamp", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != "old/cave.uhs" {
		t.Errorf("results = %+v", results)
	}
}

func TestConvert(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	f, err := svc.Convert(ctx, "old/cave.uhs", hintservice.Format9x, "cave9x.uhs")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if f.Format != "9x" || f.CRC != "valid" || f.Title != "Cave" {
		t.Errorf("converted = %+v", f)
	}
	if _, err := svc.GetFile(ctx, "cave9x.uhs"); err != nil {
		t.Errorf("converted file not cataloged: %v", err)
	}

	if _, err := svc.Convert(ctx, "old/cave.uhs", hintservice.Format9x, "cave9x.uhs"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("existing target: %v", err)
	}
	if _, err := svc.Convert(ctx, "old/cave.uhs", "97z", "x.uhs"); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("bad format: %v", err)
	}
	if _, err := svc.Convert(ctx, "old/cave.uhs", hintservice.Format88a, "x.txt"); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("bad extension: %v", err)
	}
	// The 9x sample has hotspots and sounds 88a cannot hold.
	if _, err := svc.Convert(ctx, "harbor.uhs", hintservice.Format88a, "flat.uhs"); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("9x to 88a: %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if err := svc.Delete(ctx, "harbor.uhs"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetFile(ctx, "harbor.uhs"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete: %v", err)
	}
	if err := svc.Delete(ctx, "harbor.uhs"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestImport(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	f, err := svc.Import(ctx, "new/tower.uhs", testutil.Sample88a("Tower", "Stairs", "How high?", "Very."))
	if err != nil {
		t.Fatal(err)
	}
	if f.Title != "Tower" {
		t.Errorf("file = %+v", f)
	}
	if _, err := svc.Import(ctx, "new/tower.uhs", testutil.Sample88a("Tower", "S", "Q", "H")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate: %v", err)
	}
	if _, err := svc.Import(ctx, "junk.uhs", []byte("hello")); !errors.Is(err, apperr.ErrInvalidFormat) {
		t.Errorf("junk: %v", err)
	}
}
