package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/uhskit/internal/checksum"
	"github.com/starford/uhskit/internal/models"
	"github.com/starford/uhskit/internal/storage"
)

// EventCallback is called after a watcher-driven catalog change, and for
// files that stay unparseable once writes to them stop.
type EventCallback func(models.FileChange)

const (
	// reconcileDelay debounces the pass that follows renames.
	reconcileDelay = 200 * time.Millisecond
	// settleDelay is how long a file that failed to catalog must go without
	// further events before it is retried and, if still bad, reported invalid.
	settleDelay = 300 * time.Millisecond
)

type debounce struct {
	delay time.Duration
	timer *time.Timer
	C     <-chan time.Time
}

func (d *debounce) schedule() {
	if d.timer == nil {
		d.timer = time.NewTimer(d.delay)
		d.C = d.timer.C
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debounce) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}

// watcher holds the state of one Watch call. It is only touched by the
// Watch loop.
type watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	opts   Options
	logger *slog.Logger
	cb     EventCallback

	reconcile debounce
	settle    debounce
	// unsettled files failed to catalog and wait for settleDelay.
	unsettled map[string]struct{}
	// invalid maps a path to the fingerprint last reported invalid.
	invalid map[string]string
}

// Watch starts an fsnotify watcher on the library root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each catalog mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// catalog rows whose files no longer exist on disk. A file that does not
// parse is retried once it has settled; if it still fails, cb receives an
// invalid change once per distinct content.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, opts Options, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, root); err != nil {
		return err
	}

	w := newWatcher(db, store, root, opts, logger, cb)
	logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			w.reconcile.stop()
			w.settle.stop()
			logger.Info("watcher: stopped")
			return nil

		case <-w.reconcile.C:
			w.reconcileAfterRename()

		case <-w.settle.C:
			w.settleAll()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func newWatcher(db *DB, store storage.Provider, root string, opts Options, logger *slog.Logger, cb EventCallback) *watcher {
	return &watcher{
		db:        db,
		store:     store,
		root:      root,
		opts:      opts,
		logger:    logger,
		cb:        cb,
		reconcile: debounce{delay: reconcileDelay},
		settle:    debounce{delay: settleDelay},
		unsettled: make(map[string]struct{}),
		invalid:   make(map[string]string),
	}
}

func (w *watcher) emit(c models.FileChange) {
	if w.cb != nil {
		w.cb(c)
	}
}

func (w *watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	absPath := ev.Name

	// New directories join the watch list and get cataloged.
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(fw, absPath); addErr != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
			}
			w.indexNewDir(absPath)
			return
		}
	}

	// Only visible hint files from here on.
	if !storage.IsHintFile(absPath) || strings.HasPrefix(filepath.Base(absPath), ".") {
		return
	}
	rel, relErr := filepath.Rel(w.root, absPath)
	if relErr != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, readErr := w.store.Read(rel)
		if readErr != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
			return
		}
		w.tryUpdate(rel, data)

	case ev.Op&fsnotify.Remove != 0:
		delete(w.unsettled, rel)
		delete(w.invalid, rel)
		known, err := w.db.GetFingerprint(rel)
		if err != nil {
			w.logger.Warn("watcher: fingerprint lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		if known == "" {
			return
		}
		if delErr := w.db.DeleteFile(rel); delErr != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
			return
		}
		w.logger.Debug("watcher: deleted", slog.String("path", rel))
		w.emit(models.FileChange{Kind: models.ChangeDeleted, Path: rel})

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports Rename on the old path only; the new path
		// arrives as a Create if it stays inside a watched directory.
		delete(w.unsettled, rel)
		delete(w.invalid, rel)
		if delErr := w.db.DeleteFile(rel); delErr != nil {
			w.logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
		} else {
			w.logger.Debug("watcher: rename old deleted", slog.String("path", rel))
			w.emit(models.FileChange{Kind: models.ChangeDeleted, Path: rel})
		}
		w.reconcile.schedule()
	}
}

// update catalogs data as the content of rel and reports the change.
// Unchanged content is skipped. The returned error is the parse or
// catalog failure; a failed fingerprint lookup is only logged.
func (w *watcher) update(rel string, data []byte) error {
	known, err := w.db.GetFingerprint(rel)
	if err != nil {
		w.logger.Warn("watcher: fingerprint lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return nil
	}
	if known == checksum.Fingerprint(data) {
		return nil
	}
	f, err := indexFile(w.db, rel, data, w.opts, w.logger)
	if err != nil {
		return err
	}
	delete(w.unsettled, rel)
	delete(w.invalid, rel)

	kind := models.ChangeUpdated
	if known == "" {
		kind = models.ChangeCreated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.emit(models.FileChange{Kind: kind, Path: rel, File: f})
	return nil
}

// tryUpdate is update for files that may still be being written: a
// failure parks the file until it settles.
func (w *watcher) tryUpdate(rel string, data []byte) {
	if err := w.update(rel, data); err != nil {
		w.logger.Debug("watcher: index failed, waiting for file to settle",
			slog.String("path", rel), slog.String("error", err.Error()))
		w.unsettled[rel] = struct{}{}
		w.settle.schedule()
	}
}

// settleAll retries every parked file and reports the ones that still fail.
func (w *watcher) settleAll() {
	for rel := range w.unsettled {
		delete(w.unsettled, rel)
		data, err := w.store.Read(rel)
		if err != nil {
			continue
		}
		fp := checksum.Fingerprint(data)
		if w.invalid[rel] == fp {
			continue
		}
		if err := w.update(rel, data); err != nil {
			w.invalid[rel] = fp
			w.logger.Warn("watcher: not a valid hint file", slog.String("path", rel), slog.String("error", err.Error()))
			w.emit(models.FileChange{Kind: models.ChangeInvalid, Path: rel, Error: err.Error()})
		}
	}
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds catalog rows without a corresponding file on disk and removes them,
// and finds on-disk files that are not cataloged and catalogs them.
func (w *watcher) reconcileAfterRename() {
	fingerprints, err := w.db.AllFingerprints()
	if err != nil {
		w.logger.Warn("reconcile: all fingerprints failed", slog.String("error", err.Error()))
		return
	}

	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Fingerprint
	}

	for p := range fingerprints {
		if _, ok := disk[p]; !ok {
			if delErr := w.db.DeleteFile(p); delErr == nil {
				w.logger.Debug("reconcile: removed stale", slog.String("path", p))
				w.emit(models.FileChange{Kind: models.ChangeDeleted, Path: p})
			}
		}
	}

	for p, fp := range disk {
		if fingerprints[p] == fp || w.invalid[p] == fp {
			continue
		}
		data, readErr := w.store.Read(p)
		if readErr != nil {
			continue
		}
		w.tryUpdate(p, data)
	}
}

// indexNewDir catalogs any hint files found in a newly created directory.
func (w *watcher) indexNewDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsHintFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := w.store.Read(rel)
		if readErr != nil {
			return nil
		}
		w.tryUpdate(rel, data)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
