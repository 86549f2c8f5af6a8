package index

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/uhskit/internal/checksum"
	"github.com/starford/uhskit/internal/models"
	"github.com/starford/uhskit/internal/parser"
	"github.com/starford/uhskit/internal/snapshot"
	"github.com/starford/uhskit/internal/storage"
)

// Options controls how files are cataloged.
type Options struct {
	// Workers bounds how many files Sync parses at once.
	Workers int
	// Compression is applied to stored outline snapshots.
	Compression snapshot.Compression
	// LegacyStub catalogs 9x files by their 88a stub only.
	LegacyStub bool
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return 1
	}
	return o.Workers
}

// Sync walks the library and brings the catalog up to date:
//   - new/changed files are parsed and upserted, up to Workers at a time
//   - files removed from disk are deleted from the catalog
//
// Files that fail to parse are logged and skipped.
func Sync(ctx context.Context, db *DB, store storage.Provider, opts Options, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	fingerprints, err := db.AllFingerprints()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if fingerprints[m.Path] == m.Fingerprint {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := store.Read(m.Path)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				return nil
			}
			if _, err := indexFile(db, m.Path, data, opts, logger); err != nil {
				logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: indexed", slog.String("path", m.Path))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Remove stale entries.
	for p := range fingerprints {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteFile(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the catalog. Exported so that
// the service can re-catalog files it writes.
func IndexFile(db *DB, path string, data []byte, opts Options, logger *slog.Logger) (*models.HintFile, error) {
	return indexFile(db, path, data, opts, logger)
}

func indexFile(db *DB, path string, data []byte, opts Options, logger *slog.Logger) (*models.HintFile, error) {
	popts := []parser.Option{parser.WithLogger(logger.With(slog.String("path", path)))}
	if opts.LegacyStub {
		popts = append(popts, parser.WithLegacyStub())
	}
	res, err := parser.Parse(data, popts...)
	if err != nil {
		return nil, err
	}
	snap := snapshot.Capture(res)
	blob, err := snap.Encode(opts.Compression)
	if err != nil {
		return nil, err
	}
	f := models.HintFile{
		Path:        path,
		Title:       snap.Title,
		Format:      snap.Format,
		Version:     snap.Version,
		Legacy:      snap.Legacy,
		CRC:         snap.CRC,
		Nodes:       snap.Nodes,
		Fingerprint: checksum.Fingerprint(data),
		Size:        int64(len(data)),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := db.UpsertFile(f, blob, Entries(path, snap)); err != nil {
		return nil, err
	}
	return &f, nil
}

// Entries lists the searchable nodes of a snapshot: the root and every titled
// group or link. Leaf text is left out so searching never spoils a hint.
func Entries(path string, s *snapshot.Snapshot) []models.Entry {
	var out []models.Entry
	s.Walk(func(n *snapshot.Node, trail []string) {
		if n.Text == "" || (len(trail) > 0 && !n.Group && n.Link == nil) {
			return
		}
		out = append(out, models.Entry{
			Path:   path,
			NodeID: n.ID,
			Type:   n.Type,
			Title:  n.Text,
			Trail:  strings.Join(trail, " / "),
		})
	})
	return out
}
