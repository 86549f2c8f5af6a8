package index

import "github.com/starford/uhskit/internal/models"

// Catalog defines the catalog operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing with mocks.
type Catalog interface {
	UpsertFile(f models.HintFile, snapshot []byte, entries []models.Entry) error
	DeleteFile(path string) error
	GetFingerprint(path string) (string, error)
	GetFile(path string) (*models.HintFile, error)
	GetSnapshot(path string) ([]byte, error)
	ListFiles(limit, offset int, sort string) ([]models.HintFile, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllFingerprints() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
