// Package hintservice coordinates the library, the catalog and the format
// engine for the API, MCP and CLI surfaces.
package hintservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/uhskit/internal/apperr"
	"github.com/starford/uhskit/internal/index"
	"github.com/starford/uhskit/internal/models"
	"github.com/starford/uhskit/internal/parser"
	"github.com/starford/uhskit/internal/snapshot"
	"github.com/starford/uhskit/internal/storage"
	"github.com/starford/uhskit/internal/uhs"
	"github.com/starford/uhskit/internal/writer"
)

// Service coordinates storage and catalog operations.
type Service struct {
	store  storage.Provider
	db     *index.DB
	opts   index.Options
	logger *slog.Logger
}

// NewService creates a new hint service.
func NewService(store storage.Provider, db *index.DB, opts index.Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, db: db, opts: opts, logger: logger.With("component", "hintservice")}
}

// ListFiles returns one page of cataloged files.
func (s *Service) ListFiles(_ context.Context, limit, offset int, sort string) ([]models.HintFile, int, error) {
	files, total, err := s.db.ListFiles(limit, offset, sort)
	if errors.Is(err, index.ErrUnknownSort) {
		return nil, 0, fmt.Errorf("%w: %w", apperr.ErrInvalidFormat, err)
	}
	if err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

// GetFile returns the catalog row of path.
func (s *Service) GetFile(_ context.Context, path string) (*models.HintFile, error) {
	return s.db.GetFile(path)
}

// Outline returns the stored outline snapshot of path.
func (s *Service) Outline(_ context.Context, path string) (*snapshot.Snapshot, error) {
	blob, err := s.db.GetSnapshot(path)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(blob)
}

// Search delegates title search to the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Open parses path from disk. Binary payloads stay on disk until read.
func (s *Service) Open(_ context.Context, path string) (*parser.Result, error) {
	abs, err := s.store.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}
	popts := []parser.Option{parser.WithLogger(s.logger.With(slog.String("path", path)))}
	if s.opts.LegacyStub {
		popts = append(popts, parser.WithLegacyStub())
	}
	res, err := parser.ParseFile(abs, popts...)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("hintservice: %s: %w", path, apperr.ErrNotFound)
	case errors.Is(err, parser.ErrNotUHS), errors.Is(err, parser.ErrStructure):
		return nil, fmt.Errorf("hintservice: %s: %w: %w", path, apperr.ErrInvalidFormat, err)
	case err != nil:
		return nil, err
	}
	return res, nil
}

// Node resolves id in path the way a reader follows a link and reveals the
// first reveal children. id 0 is the root; a negative reveal keeps the
// default of one.
func (s *Service) Node(ctx context.Context, path string, id, reveal int) (*NodeView, error) {
	res, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	n := &res.Root.Node
	if id != 0 {
		n = res.Root.Link(id)
		if n == nil {
			return nil, fmt.Errorf("hintservice: node %d in %s: %w", id, path, apperr.ErrNotFound)
		}
	}
	if reveal >= 0 {
		n.SetCurrentReveal(reveal)
	}
	v := viewOf(n, id)
	return &v, nil
}

// Binary opens the payload of node id, or of its child-th child when child
// is not negative. The caller closes the reader.
func (s *Service) Binary(ctx context.Context, path string, id, child int) (io.ReadCloser, *BinaryInfo, error) {
	res, err := s.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	n := res.Root.NodeByLinkID(id)
	if n != nil && child >= 0 {
		n = n.Child(child)
	}
	if n == nil || n.Binary() == nil {
		return nil, nil, fmt.Errorf("hintservice: binary %d/%d in %s: %w", id, child, path, apperr.ErrNotFound)
	}
	rc, err := n.Binary().Open()
	if err != nil {
		return nil, nil, err
	}
	return rc, &BinaryInfo{
		Kind:    n.ContentKind().String(),
		Caption: n.Text(),
		Size:    n.Binary().Length(),
	}, nil
}

// Formats accepted by Convert.
const (
	Format88a = "88a"
	Format9x  = "9x"
)

// Convert rewrites the file at path in format and stores it at target,
// which must not exist yet. The new file is cataloged immediately.
func (s *Service) Convert(ctx context.Context, path, format, target string) (*models.HintFile, error) {
	if !storage.IsHintFile(target) {
		return nil, fmt.Errorf("hintservice: target %q needs the %s extension: %w", target, storage.Ext, apperr.ErrInvalidFormat)
	}
	if _, err := s.store.Read(target); err == nil {
		return nil, fmt.Errorf("hintservice: %s: %w", target, apperr.ErrAlreadyExists)
	}
	res, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := Encode(res.Root, format, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(target, data); err != nil {
		return nil, err
	}
	s.logger.Info("converted", slog.String("path", path), slog.String("target", target), slog.String("format", format))
	return index.IndexFile(s.db, target, data, s.opts, s.logger)
}

// Encode writes root in format, mapping writer validation failures to
// apperr.ErrInvalidFormat.
func Encode(root *uhs.RootNode, format string, logger *slog.Logger) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case Format88a:
		data, err = writer.Write88a(root)
	case Format9x:
		data, err = writer.Write9x(root, writer.WithLogger(logger))
	default:
		return nil, fmt.Errorf("hintservice: unknown format %q: %w", format, apperr.ErrInvalidFormat)
	}
	if errors.Is(err, writer.ErrInvalidShape) || errors.Is(err, writer.ErrUnresolvedLink) {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidFormat, err)
	}
	return data, err
}

// Import stores data at path after checking that it parses, then catalogs it.
func (s *Service) Import(_ context.Context, path string, data []byte) (*models.HintFile, error) {
	if !storage.IsHintFile(path) {
		return nil, fmt.Errorf("hintservice: %q needs the %s extension: %w", path, storage.Ext, apperr.ErrInvalidFormat)
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("hintservice: %s: %w", path, apperr.ErrAlreadyExists)
	}
	if _, err := parser.Parse(data, parser.WithLogger(s.logger.With(slog.String("path", path)))); err != nil {
		return nil, fmt.Errorf("hintservice: %s: %w: %w", path, apperr.ErrInvalidFormat, err)
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	return index.IndexFile(s.db, path, data, s.opts, s.logger)
}

// Delete removes a file from the library and the catalog.
func (s *Service) Delete(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("hintservice: %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	return s.db.DeleteFile(path)
}

// Sync brings the catalog up to date with the library.
func (s *Service) Sync(ctx context.Context) error {
	return index.Sync(ctx, s.db, s.store, s.opts, s.logger)
}

// FormatNotes is a short reference of the file format for tool consumers.
const FormatNotes = `UHS hint files come in two layouts.

88a: plain text lines. "UHS", the title, two header numbers, then subjects,
questions and hints addressed by line pointers. Hint text is obfuscated with
a simple substitution; subject and question titles are plain.

9x (91a, 95a, 96a): an 88a compatibility stub, the line
"** END OF 88A FORMAT **", then nested hunks. Each hunk starts with
"<line count> <type>" and its line number is its link ID. Types include
subject, hint, nesthint, comment, text, link, hyperpng, gifa, sound, blank,
version, info, credit and incentive. Images and sounds live in a binary
region after an 0x1A byte, addressed by offset and length. The last two
bytes hold a CRC16 of everything before them.

Markup inside text: "^break^" separates lines, "#w+"/"#w-" switch wrapping,
"#p+"/"#p-" monospace, "#h+"/"#h-" hyperlinks, "#a+..#a-" accents, "##" a
literal hash.

Hints are revealed one at a time; reveal_hint takes the number to show.`
