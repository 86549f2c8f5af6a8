package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const maxImportSize = 50 << 20 // 50 MB

var (
	// Hint files have no registered MIME type; accept the generic ones clients send.
	allowedMIME = map[string]bool{
		"":                         true,
		"application/octet-stream": true,
		"application/x-uhs":        true,
		"text/plain":               true,
	}

	safeSegmentRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

func (s *Server) importFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawPath, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := decodeDataURI(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxImportSize)), nil
	}

	f, err := s.svc.Import(ctx, sanitizePath(rawPath), data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: must start with data:")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if !allowedMIME[mime] {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// sanitizePath replaces unsafe characters in every segment of a slash
// separated library path. Traversal is left for storage to reject.
func sanitizePath(p string) string {
	segs := strings.Split(path.Clean("/" + p)[1:], "/")
	for i, seg := range segs {
		segs[i] = safeSegmentRe.ReplaceAllString(seg, "_")
	}
	return strings.Join(segs, "/")
}
