package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/index"
	"github.com/starford/uhskit/internal/snapshot"
	"github.com/starford/uhskit/internal/storage"
	"github.com/starford/uhskit/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestLibrary(t)
	if err := store.Write("harbor.uhs", testutil.Sample9x(t)); err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := hintservice.NewService(store, db, index.Options{Workers: 1}, logger)
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(svc), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so dispatch to the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_hints":
		result, err = srv.searchHints(ctx, req)
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "get_outline":
		result, err = srv.getOutline(ctx, req)
	case "reveal_hint":
		result, err = srv.revealHint(ctx, req)
	case "get_format_notes":
		result, err = srv.getFormatNotes(ctx, req)
	case "import_file":
		result, err = srv.importFile(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func questionID(t *testing.T, srv *Server) int {
	t.Helper()
	r := callTool(t, srv, "get_outline", map[string]any{"path": "harbor.uhs"})
	if r.IsError {
		t.Fatalf("get_outline: %s", resultText(r))
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal([]byte(resultText(r)), &snap); err != nil {
		t.Fatal(err)
	}
	n := 0
	snap.Walk(func(node *snapshot.Node, _ []string) {
		if n == 0 && node.Text == testutil.SampleQuestion {
			n = node.ID
		}
	})
	if n == 0 {
		t.Fatal("question not in outline")
	}
	return n
}

func TestListFiles(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "list_files", map[string]any{}))
	if !strings.Contains(text, "harbor.uhs") || !strings.Contains(text, testutil.SampleTitle) {
		t.Errorf("list = %q", text)
	}
}

func TestSearchHints(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "search_hints", map[string]any{"query": "ferry"}))
	if !strings.Contains(text, testutil.SampleQuestion) {
		t.Errorf("search = %q", text)
	}
	if strings.Contains(text, "harbor master") {
		t.Error("search must not leak hint text")
	}

	text = resultText(callTool(t, srv, "search_hints", map[string]any{"query": "zeppelin"}))
	if text != "no matches" {
		t.Errorf("empty search = %q", text)
	}

	if r := callTool(t, srv, "search_hints", map[string]any{}); !r.IsError {
		t.Error("missing query should be an error")
	}
}

func TestRevealHint_Progressive(t *testing.T) {
	srv, _ := testServer(t)
	id := questionID(t, srv)

	text := resultText(callTool(t, srv, "reveal_hint", map[string]any{"path": "harbor.uhs", "id": float64(id)}))
	if !strings.Contains(text, "Talk to the harbor master.") {
		t.Errorf("first reveal = %q", text)
	}
	if strings.Contains(text, "Show him the ticket.") || !strings.Contains(text, "1 more hidden.") {
		t.Errorf("second hint should still be hidden: %q", text)
	}

	text = resultText(callTool(t, srv, "reveal_hint", map[string]any{"path": "harbor.uhs", "id": float64(id), "reveal": float64(2)}))
	if !strings.Contains(text, "Show him the ticket.") || strings.Contains(text, "hidden") {
		t.Errorf("full reveal = %q", text)
	}
}

func TestRevealHint_Errors(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "reveal_hint", map[string]any{"path": "harbor.uhs", "id": float64(9999)}); !r.IsError {
		t.Error("unknown id should be an error")
	}
	if r := callTool(t, srv, "reveal_hint", map[string]any{"path": "missing.uhs", "id": float64(1)}); !r.IsError {
		t.Error("missing file should be an error")
	}
	if r := callTool(t, srv, "get_outline", map[string]any{"path": "missing.uhs"}); !r.IsError {
		t.Error("missing outline should be an error")
	}
}

func TestGetFormatNotes(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_format_notes", nil))
	if text != hintservice.FormatNotes {
		t.Error("format notes mismatch")
	}
}

func TestImportFile(t *testing.T) {
	srv, store := testServer(t)
	data := testutil.Sample88a("Cave", "Entrance", "Where is the lamp?", "On the shelf.")
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(data)

	r := callTool(t, srv, "import_file", map[string]any{"path": "old/my cave.uhs", "data": uri})
	if r.IsError {
		t.Fatalf("import: %s", resultText(r))
	}
	if _, err := store.Read("old/my_cave.uhs"); err != nil {
		t.Errorf("file not stored under sanitized path: %v", err)
	}
	if !strings.Contains(resultText(callTool(t, srv, "list_files", nil)), "Cave") {
		t.Error("imported file should be cataloged")
	}

	r = callTool(t, srv, "import_file", map[string]any{"path": "old/my cave.uhs", "data": uri})
	if !r.IsError {
		t.Error("duplicate import should fail")
	}
}

func TestImportFile_Rejects(t *testing.T) {
	srv, _ := testServer(t)
	garbage := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString([]byte("not a hint file"))
	cases := map[string]map[string]any{
		"not a data uri": {"path": "a.uhs", "data": "aGVsbG8="},
		"wrong mime":     {"path": "a.uhs", "data": "data:image/png;base64,aGVsbG8="},
		"not base64":     {"path": "a.uhs", "data": "data:application/octet-stream,hello"},
		"wrong ext":      {"path": "a.txt", "data": garbage},
		"unparseable":    {"path": "a.uhs", "data": garbage},
	}
	for name, args := range cases {
		if r := callTool(t, srv, "import_file", args); !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	cases := map[string]string{
		"games/harbor.uhs": "games/harbor.uhs",
		"my games/a b.uhs": "my_games/a_b.uhs",
		"../../etc/x.uhs":  "etc/x.uhs",
		"/abs/Ünïcode.uhs": "abs/_n_code.uhs",
	}
	for in, want := range cases {
		if got := sanitizePath(in); got != want {
			t.Errorf("sanitizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
