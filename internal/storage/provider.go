// Package storage defines the hint library file-system abstraction.
package storage

import "github.com/starford/uhskit/internal/models"

// Provider is the interface for library file operations. Paths are relative
// to the library root.
type Provider interface {
	// List returns metadata for every .uhs file under dir.
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Abs resolves path to an absolute file name inside the library.
	Abs(path string) (string, error)
}

// Ext is the file extension of hint files, compared case-insensitively.
const Ext = ".uhs"
