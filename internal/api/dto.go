package api

import (
	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/index"
	"github.com/starford/uhskit/internal/models"
)

// ConvertRequest is the request body for converting a file.
type ConvertRequest struct {
	Path   string `json:"path" example:"games/harbor.uhs" validate:"required"`
	Format string `json:"format" example:"9x" validate:"required" enums:"88a,9x"`
	Target string `json:"target" example:"games/harbor-9x.uhs" validate:"required"`
}

// HintFile is a catalog row (aliased from the domain layer).
type HintFile = models.HintFile

// FileListResponse wraps paginated file listings.
type FileListResponse struct {
	Files []HintFile `json:"files" validate:"required"`
	Total int        `json:"total" example:"42" validate:"required"`
}

// NodeView is a revealed node (aliased from the domain layer).
type NodeView = hintservice.NodeView

// SearchResult is a single search hit (aliased from the catalog).
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// UploadResponse is returned after a successful file upload.
type UploadResponse struct {
	File HintFile `json:"file" validate:"required"`
}
