package index

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/uhskit/internal/models"
	"github.com/starford/uhskit/internal/storage"
)

// watcherTestEnv sets up a library dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	libDir := t.TempDir()
	store, err := storage.NewFS(libDir)
	if err != nil {
		t.Fatal(err)
	}
	return libDir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	var created *models.HintFile

	go Watch(ctx, db, store, libDir, Options{}, logger, func(c models.FileChange) {
		mu.Lock()
		events = append(events, c.Kind+":"+c.Path)
		if c.Kind == models.ChangeCreated {
			created = c.File
		}
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(libDir, "new.uhs"), sample88a("New", "S", "Q", "H"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetFingerprint("new.uhs")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.uhs" {
				return true
			}
		}
		return false
	}, "expected created:new.uhs callback")

	mu.Lock()
	defer mu.Unlock()
	if created == nil || created.Title != "New" {
		t.Errorf("created change should carry the catalog row, got %+v", created)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, Options{}, logger, nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(libDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.uhs"), sample88a("Deep", "S", "Q", "H"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetFingerprint("subdir/deep.uhs")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(libDir, "del.uhs"), sample88a("Delete Me", "S", "Q", "H"), 0o644)
	_ = Sync(context.Background(), db, store, Options{}, logger)

	cs, _ := db.GetFingerprint("del.uhs")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, Options{}, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(libDir, "del.uhs"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetFingerprint("del.uhs")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(libDir, "old.uhs"), sample88a("Rename", "S", "Q", "H"), 0o644)
	_ = Sync(context.Background(), db, store, Options{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, Options{}, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(libDir, "old.uhs"), filepath.Join(libDir, "renamed.uhs"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetFingerprint("old.uhs")
		newCS, _ := db.GetFingerprint("renamed.uhs")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

// changeRecorder collects watcher callbacks.
type changeRecorder struct {
	mu      sync.Mutex
	changes []models.FileChange
}

func (r *changeRecorder) record(c models.FileChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *changeRecorder) kinds(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.changes {
		if c.Path == path {
			out = append(out, c.Kind)
		}
	}
	return out
}

func TestWatcher_InvalidFileReportedOnce(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	rec := &changeRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, Options{}, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	bad := filepath.Join(libDir, "bad.uhs")
	_ = os.WriteFile(bad, []byte("not a hint file\r\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(rec.kinds("bad.uhs")) > 0
	}, "expected an invalid change for bad.uhs")

	// Touching the file with the same content must not report it again.
	_ = os.WriteFile(bad, []byte("not a hint file\r\n"), 0o644)
	time.Sleep(2 * settleDelay)

	kinds := rec.kinds("bad.uhs")
	if len(kinds) != 1 || kinds[0] != models.ChangeInvalid {
		t.Fatalf("kinds = %v, want one %q", kinds, models.ChangeInvalid)
	}
	rec.mu.Lock()
	if rec.changes[0].Error == "" {
		t.Error("invalid change should carry the parse error")
	}
	rec.mu.Unlock()

	if fp, _ := db.GetFingerprint("bad.uhs"); fp != "" {
		t.Error("invalid file must not be cataloged")
	}

	// Fixing the file catalogs it.
	_ = os.WriteFile(bad, sample88a("Fixed", "S", "Q", "H"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		for _, k := range rec.kinds("bad.uhs") {
			if k == models.ChangeCreated {
				return true
			}
		}
		return false
	}, "fixed file not cataloged")
}

func TestWatcher_FingerprintLookupFailureLogged(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	rec := &changeRecorder{}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	w := newWatcher(db, store, libDir, Options{}, logger, rec.record)

	_ = db.Close()

	if err := w.update("gone.uhs", sample88a("Gone", "S", "Q", "H")); err != nil {
		t.Fatalf("lookup failure should not be reported as a parse failure: %v", err)
	}
	if len(rec.kinds("gone.uhs")) != 0 {
		t.Error("no change should be emitted when the catalog cannot be read")
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "fingerprint lookup failed") {
		t.Errorf("expected a warning for the failed lookup, got %q", out)
	}
}
