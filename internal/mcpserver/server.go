// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the hint library to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/uhskit/internal/hintservice"
)

const formatNotesURI = "uhs://format-notes"

// Server wraps the MCP server with hint library tools.
type Server struct {
	mcp *server.MCPServer
	svc *hintservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *hintservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"uhskit",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_hints",
		mcp.WithDescription("Search subject and question titles across the hint library. "+
			"Hint text itself is never searched, so results do not spoil anything."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchHints)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the hint files in the library with title, format and checksum status."),
		mcp.WithString("sort", mcp.Description("Sort order: path, title or updated")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Return the outline of one hint file as JSON. Every node carries its type, "+
			"title and link ID; pass an ID to reveal_hint to read it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Library path of the file (e.g. games/harbor.uhs)")),
	), s.getOutline)

	s.mcp.AddTool(mcp.NewTool("reveal_hint",
		mcp.WithDescription("Open a node by link ID and reveal its first N hints. Reveal one more at a "+
			"time to avoid spoiling the answer."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Library path of the file")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Link ID from get_outline or search_hints")),
		mcp.WithNumber("reveal", mcp.Description("How many hints to show (default 1)")),
	), s.revealHint)

	s.mcp.AddTool(mcp.NewTool("get_format_notes",
		mcp.WithDescription("Returns a short reference of the UHS file format and its markup."),
	), s.getFormatNotes)

	s.mcp.AddTool(mcp.NewTool("import_file",
		mcp.WithDescription("Add a hint file to the library from a base64 data URI. "+
			"The file must parse as 88a or 9x."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Library path for the new file (must end with .uhs)")),
		mcp.WithString("data", mcp.Required(), mcp.Description("data:application/octet-stream;base64,... URI")),
	), s.importFile)

	s.mcp.AddResource(
		mcp.NewResource(formatNotesURI, "UHS Format Notes",
			mcp.WithResourceDescription("Reference of the 88a and 9x hint file layouts and text markup."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readFormatNotesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchHints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, total, err := s.svc.ListFiles(ctx, 1000, 0, req.GetString("sort", "path"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("library is empty"), nil
	}
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", f.Path, f.Title, f.Version, f.CRC)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.Outline(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap), nil
}

func (s *Server) revealHint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Node(ctx, path, id, req.GetInt("reveal", 1))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatView(v)), nil
}

// formatView lays a node out as plain text: title, numbered children, and
// how many remain hidden.
func formatView(v *hintservice.NodeView) string {
	var b strings.Builder
	if v.Title != "" {
		b.WriteString(v.Title)
		b.WriteString("\n\n")
	}
	for i, c := range v.Children {
		fmt.Fprintf(&b, "%d. ", i+1)
		switch {
		case c.Link != nil:
			fmt.Fprintf(&b, "%s (see id %d)", c.Text, *c.Link)
		case c.Binary != nil:
			fmt.Fprintf(&b, "[%s] %s", c.Binary.Kind, c.Text)
		case c.Group:
			fmt.Fprintf(&b, "%s (id %d)", c.Text, c.ID)
		default:
			b.WriteString(c.Text)
		}
		b.WriteString("\n")
	}
	if hidden := v.Maximum - v.Revealed; hidden > 0 {
		fmt.Fprintf(&b, "\n%d more hidden.\n", hidden)
	}
	return b.String()
}

func (s *Server) getFormatNotes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(hintservice.FormatNotes), nil
}

func (s *Server) readFormatNotesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatNotesURI,
			MIMEType: "text/plain",
			Text:     hintservice.FormatNotes,
		},
	}, nil
}
