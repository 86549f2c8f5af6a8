package uhs

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// BinaryRef gives access to an image or audio payload without saying how it
// is held. Every Open returns a fresh stream that the caller must close.
type BinaryRef interface {
	Length() int64
	Open() (io.ReadCloser, error)
}

// Bytes is a BinaryRef over content already in memory.
type Bytes []byte

// Length returns the payload size.
func (b Bytes) Length() int64 { return int64(len(b)) }

// Open returns a reader over the bytes.
func (b Bytes) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FileRegion is a BinaryRef over a window of a file on disk. The file is
// reopened on every Open.
type FileRegion struct {
	Path   string
	Offset int64
	Size   int64
}

// Length returns the window size.
func (r FileRegion) Length() int64 { return r.Size }

// Open reopens the file and returns a reader limited to the window.
func (r FileRegion) Open() (io.ReadCloser, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("uhs: open region: %w", err)
	}
	if _, err := f.Seek(r.Offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("uhs: seek region: %w", err)
	}
	return &regionReader{Reader: io.LimitReader(f, r.Size), file: f}, nil
}

type regionReader struct {
	io.Reader
	file *os.File
}

func (r *regionReader) Close() error { return r.file.Close() }

// ReadAll opens ref, reads it fully and closes it.
func ReadAll(ref BinaryRef) ([]byte, error) {
	rc, err := ref.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
