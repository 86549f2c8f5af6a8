// Package models defines the catalog types shared by the service surfaces.
package models

import "time"

// HintFile is one cataloged .uhs file.
type HintFile struct {
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Format      string    `json:"format"`
	Version     string    `json:"version,omitempty"`
	Legacy      bool      `json:"legacy,omitempty"`
	CRC         string    `json:"crc"`
	Nodes       int       `json:"nodes"`
	Fingerprint string    `json:"fingerprint"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Entry is a searchable titled node of a cataloged file. Trail holds the
// titles of its ancestors joined with " / ".
type Entry struct {
	Path   string `json:"path"`
	NodeID int    `json:"id,omitempty"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Trail  string `json:"trail,omitempty"`
}

// Kinds of FileChange.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
	ChangeInvalid = "invalid"
)

// FileChange reports one change to the library. File is the new catalog row
// of created and updated files. Error says why an invalid file could not be
// cataloged.
type FileChange struct {
	Kind  string
	Path  string
	File  *HintFile
	Error string
}
