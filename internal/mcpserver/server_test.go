package mcpserver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/ingest"
	"github.com/starford/birbbrain/internal/ledger"
	"github.com/starford/birbbrain/internal/noteservice"
	"github.com/starford/birbbrain/internal/storage"
	"github.com/starford/birbbrain/internal/testutil"
)

const threadSvc = "https://svc.test/thread"

type mcpEnv struct {
	srv    *Server
	store  *storage.FS
	db     *index.DB
	getter *testutil.StubGetter
}

func testServer(t *testing.T) *mcpEnv {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	getter := testutil.NewStubGetter()
	l, err := ledger.Open(store, storage.LedgerFile)
	if err != nil {
		t.Fatal(err)
	}
	driver := ingest.NewPipeline(store, l, getter, ingest.Endpoints{ThreadService: threadSvc}, testutil.Logger(), nil)
	svc := noteservice.NewService(store, db, driver, testutil.Logger())
	return &mcpEnv{srv: New(svc, "test"), store: store, db: db, getter: getter}
}

// seed writes files into the vault and syncs the index.
func (e *mcpEnv) seed(t *testing.T, files map[string]string) {
	t.Helper()
	for p, body := range files {
		if err := e.store.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := index.Sync(e.db, e.store, testutil.Logger()); err != nil {
		t.Fatal(err)
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "ingest_post":
		result, err = srv.ingestPost(ctx, req)
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

func TestReadNote(t *testing.T) {
	e := testServer(t)
	e.seed(t, map[string]string{"GitHub/widget.md": "# acme/widget\n"})

	r := callTool(t, e.srv, "read_note", map[string]any{"path": "GitHub/widget.md"})
	if text := resultText(r); text != "# acme/widget\n" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	e := testServer(t)
	r := callTool(t, e.srv, "read_note", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListNotes(t *testing.T) {
	e := testServer(t)
	e.seed(t, map[string]string{
		"GitHub/a.md":   "# a",
		"Substack/b.md": "# b",
	})

	text := resultText(callTool(t, e.srv, "list_notes", map[string]any{}))
	if !strings.Contains(text, "GitHub/a.md") || !strings.Contains(text, "Substack/b.md") {
		t.Errorf("list = %q", text)
	}

	text = resultText(callTool(t, e.srv, "list_notes", map[string]any{"kind": "repository"}))
	if text != "repository\tGitHub/a.md\ta" {
		t.Errorf("filtered list = %q", text)
	}

	text = resultText(callTool(t, e.srv, "list_notes", map[string]any{"kind": "paper"}))
	if text != "no notes found" {
		t.Errorf("empty list = %q", text)
	}
}

func TestSearchNotes(t *testing.T) {
	e := testServer(t)
	e.seed(t, map[string]string{"arXiv/Transformers - 1706.03762.md": "# Transformers\n\nattention mechanism"})

	text := resultText(callTool(t, e.srv, "search_notes", map[string]any{"query": "attention"}))
	if !strings.Contains(text, "arXiv/Transformers - 1706.03762.md") {
		t.Errorf("search = %q", text)
	}

	r := callTool(t, e.srv, "search_notes", map[string]any{})
	if !r.IsError {
		t.Error("expected error without query")
	}
}

func TestGetBacklinks(t *testing.T) {
	e := testServer(t)
	e.seed(t, map[string]string{
		"Tweets/t.md":      "# Thread\n\nGitHub: [[GitHub/widget.md]]",
		"GitHub/widget.md": "# widget",
	})

	r := callTool(t, e.srv, "get_backlinks", map[string]any{"path": "GitHub/widget.md"})
	if text := resultText(r); text != "Tweets/t.md" {
		t.Errorf("backlinks = %q, want Tweets/t.md", text)
	}
	r = callTool(t, e.srv, "get_backlinks", map[string]any{"path": "GitHub/none.md"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestIngestPost(t *testing.T) {
	e := testServer(t)
	e.getter.On(threadSvc+"?url="+url.QueryEscape("https://x.com/dan/status/7"), http.StatusOK,
		`{"posts":[{"id":"7","author":"dan","timestamp":"2024-05-05T10:00:00Z","text":"Morning notes"}]}`)

	r := callTool(t, e.srv, "ingest_post", map[string]any{
		"post_url": "https://x.com/dan/status/7",
		"author":   "dan",
		"date":     "2024-05-05",
	})
	if r.IsError {
		t.Fatalf("ingest error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"outcome": "archived"`) {
		t.Errorf("ingest = %q", resultText(r))
	}
	if ok, _ := e.store.Exists("Tweets/2024-05-05 - dan - Morning notes.md"); !ok {
		t.Error("thread note not written")
	}

	r = callTool(t, e.srv, "ingest_post", map[string]any{"post_url": "/"})
	if !r.IsError {
		t.Error("expected error for post without id")
	}
}
