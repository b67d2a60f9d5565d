package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/ingest"
	"github.com/starford/birbbrain/internal/ledger"
	"github.com/starford/birbbrain/internal/noteservice"
	"github.com/starford/birbbrain/internal/storage"
	"github.com/starford/birbbrain/internal/testutil"
)

const threadSvc = "https://svc.test/thread"

type apiEnv struct {
	store  *storage.FS
	getter *testutil.StubGetter
	router http.Handler
}

// testEnv sets up a temp vault, SQLite DB, ingestion pipeline and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) *apiEnv {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	getter := testutil.NewStubGetter()
	l, err := ledger.Open(store, storage.LedgerFile)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	driver := ingest.NewPipeline(store, l, getter, ingest.Endpoints{
		ThreadService: threadSvc,
		GitHubAPI:     "https://api.github.test",
		ArXivAPI:      "https://arxiv.test/query",
	}, testutil.Logger(), nil)

	svc := noteservice.NewService(store, db, driver, testutil.Logger())
	return &apiEnv{
		store:  store,
		getter: getter,
		router: NewRouter(svc, authToken != "", authToken),
	}
}

func (e *apiEnv) seed(t *testing.T, files map[string]string) {
	t.Helper()
	for p, body := range files {
		if err := e.store.Write(p, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *apiEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func submit(t *testing.T, e *apiEnv, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	return e.do(req)
}

func TestSubmitJob_ArchivesAndIndexes(t *testing.T) {
	e := testEnv(t, "")
	e.getter.
		On(threadSvc+"?url="+url.QueryEscape("https://x.com/alice/status/111"), http.StatusOK,
			`{"posts":[{"id":"111","author":"alice","timestamp":"2024-01-01T09:00:00Z","text":"Check this out https://github.com/acme/widget"}]}`).
		On("https://api.github.test/repos/acme/widget", http.StatusOK,
			`{"name":"widget","full_name":"acme/widget","stargazers_count":1,"forks_count":0}`).
		On("https://api.github.test/repos/acme/widget/readme", http.StatusOK, "readme")

	body, _ := json.Marshal(SubmitJobRequest{PostURL: "https://x.com/alice/status/111", Author: "alice", Date: "2024-01-01"})
	w := submit(t, e, string(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("submit = %d, body = %s", w.Code, w.Body.String())
	}
	var res IngestResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.JobID != "111" || res.Outcome != ingest.Archived {
		t.Errorf("result = %+v", res)
	}

	w = e.do(httptest.NewRequest(http.MethodGet, "/backlinks/GitHub/widget.md", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var bl BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bl)
	if len(bl.Backlinks) != 1 || bl.Backlinks[0].Source != "Tweets/2024-01-01 - alice - Check this out.md" {
		t.Errorf("backlinks = %+v", bl)
	}

	// Second submission is gated by the ledger.
	w = submit(t, e, string(body))
	if w.Code != http.StatusOK {
		t.Errorf("resubmit = %d, want 200", w.Code)
	}
}

func TestSubmitJob_EmptyThreadAccepted(t *testing.T) {
	e := testEnv(t, "")
	e.getter.On(threadSvc+"?url="+url.QueryEscape("https://x.com/bob/status/9"), http.StatusOK, `{"posts":[]}`)

	w := submit(t, e, `{"post_url":"https://x.com/bob/status/9","author":"bob","date":"2024-01-01"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit = %d, body = %s", w.Code, w.Body.String())
	}
	var res IngestResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Retryable {
		t.Error("empty thread should be retryable")
	}
}

func TestSubmitJob_BadRequests(t *testing.T) {
	e := testEnv(t, "")
	for name, body := range map[string]string{
		"invalid json": `{`,
		"missing url":  `{"author":"a"}`,
		"no id":        `{"post_url":"/"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if w := submit(t, e, body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if n := len(e.getter.Calls()); n != 0 {
		t.Errorf("bad requests reached the network %d times", n)
	}
}

func TestGetNote(t *testing.T) {
	e := testEnv(t, "")
	e.seed(t, map[string]string{"GitHub/widget.md": "---\ntitle: acme/widget\n---\n\n# acme/widget\n"})

	w := e.do(httptest.NewRequest(http.MethodGet, "/notes/GitHub%2Fwidget.md", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "acme/widget" || note.Kind != index.KindRepo {
		t.Errorf("note = %+v", note)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(httptest.NewRequest(http.MethodGet, "/notes/Tweets/nope.md", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestListAndSearch(t *testing.T) {
	e := testEnv(t, "")
	// Ingest a job so the index is synced from the vault.
	e.seed(t, map[string]string{"Substack/essay.md": "# Essay\n\nquokka habitats"})
	e.getter.
		On(threadSvc+"?url="+url.QueryEscape("https://x.com/c/status/5"), http.StatusOK,
			`{"posts":[{"id":"5","author":"c","timestamp":"2024-01-01T09:00:00Z","text":"hello"}]}`)
	if w := submit(t, e, `{"post_url":"https://x.com/c/status/5","author":"c","date":"2024-01-01"}`); w.Code != http.StatusCreated {
		t.Fatalf("submit = %d", w.Code)
	}

	w := e.do(httptest.NewRequest(http.MethodGet, "/notes?kind=article", nil))
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Notes[0].Path != "Substack/essay.md" {
		t.Errorf("list = %+v", list)
	}

	w = e.do(httptest.NewRequest(http.MethodGet, "/search?q=quokka", nil))
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) != 1 {
		t.Errorf("search results = %+v", sr.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(httptest.NewRequest(http.MethodGet, "/search", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := testEnv(t, "secret123")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer secret123", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer wrong", http.StatusUnauthorized},
		{"scheme", "Basic secret123", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/notes", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if w := e.do(req); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte(`{}`)))
	if w := e.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed submit = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(httptest.NewRequest(http.MethodGet, "/notes", nil))
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}
