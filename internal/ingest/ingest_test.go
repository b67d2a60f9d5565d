package ingest

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/birbbrain/internal/ledger"
	"github.com/starford/birbbrain/internal/metrics"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/storage"
	"github.com/starford/birbbrain/internal/testutil"
)

const (
	threadSvc = "https://svc.test/thread"
	githubAPI = "https://api.github.test"
	arxivAPI  = "https://arxiv.test/query"
)

func threadURL(postURL string) string {
	return threadSvc + "?url=" + url.QueryEscape(postURL)
}

type env struct {
	store   *storage.FS
	getter  *testutil.StubGetter
	metrics *metrics.Collector
}

func newEnv(t *testing.T) *env {
	t.Helper()
	_, store := testutil.TestVault(t)
	return &env{store: store, getter: testutil.NewStubGetter(), metrics: metrics.NewCollector("test")}
}

// driver opens a fresh ledger each time, as a new process would.
func (e *env) driver(t *testing.T) *Driver {
	t.Helper()
	l, err := ledger.Open(e.store, storage.LedgerFile)
	require.NoError(t, err)
	return NewPipeline(e.store, l, e.getter, Endpoints{
		ThreadService: threadSvc,
		GitHubAPI:     githubAPI,
		ArXivAPI:      arxivAPI,
	}, testutil.Logger(), e.metrics)
}

var aliceJob = models.Job{PostURL: "https://x.com/alice/status/111", Author: "alice", Date: "2024-01-01"}

func (e *env) serveGitHubScenario() {
	e.getter.
		On(threadURL(aliceJob.PostURL), http.StatusOK,
			`{"posts":[{"id":"111","author":"alice","timestamp":"2024-01-01T09:00:00Z","text":"Check this out https://github.com/acme/widget"}]}`).
		On(githubAPI+"/repos/acme/widget", http.StatusOK,
			`{"name":"widget","full_name":"acme/widget","stargazers_count":12,"forks_count":3}`).
		On(githubAPI+"/repos/acme/widget/readme", http.StatusOK, "Widget readme text")
}

func TestRun_GitHubScenario(t *testing.T) {
	e := newEnv(t)
	e.serveGitHubScenario()

	rep, err := e.driver(t).Run(context.Background(), []models.Job{aliceJob})
	require.NoError(t, err)
	assert.Equal(t, Report{Archived: 1}, rep)

	note, err := e.store.Read("Tweets/2024-01-01 - alice - Check this out.md")
	require.NoError(t, err)
	assert.Contains(t, string(note), "\n\nGitHub: [[GitHub/widget.md]]")

	repo, err := e.store.Read("GitHub/widget.md")
	require.NoError(t, err)
	assert.Contains(t, string(repo), "Stars: 12 | Forks: 3")
	assert.Contains(t, string(repo), "Widget readme text")

	ledgerData, _ := e.store.Read(storage.LedgerFile)
	assert.Equal(t, "111\n", string(ledgerData))
}

func TestRun_SecondRunMakesNoRequests(t *testing.T) {
	e := newEnv(t)
	e.serveGitHubScenario()
	_, err := e.driver(t).Run(context.Background(), []models.Job{aliceJob})
	require.NoError(t, err)
	before := len(e.getter.Calls())
	noteBefore, _ := e.store.Read("Tweets/2024-01-01 - alice - Check this out.md")

	rep, err := e.driver(t).Run(context.Background(), []models.Job{aliceJob})
	require.NoError(t, err)
	assert.Equal(t, Report{Skipped: 1}, rep)
	assert.Len(t, e.getter.Calls(), before)

	noteAfter, _ := e.store.Read("Tweets/2024-01-01 - alice - Check this out.md")
	assert.Equal(t, string(noteBefore), string(noteAfter))
	ledgerData, _ := e.store.Read(storage.LedgerFile)
	assert.Equal(t, "111\n", string(ledgerData))
}

func TestRun_RecordedJobIsNeverFetched(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.AppendLine(storage.LedgerFile, "111"))

	rep, err := e.driver(t).Run(context.Background(), []models.Job{aliceJob})
	require.NoError(t, err)
	assert.Equal(t, Report{Skipped: 1}, rep)
	assert.Empty(t, e.getter.Calls())
	metas, _ := e.store.List(storage.DirThreads)
	assert.Empty(t, metas)
}

func TestRun_EmptyThreadIsRetried(t *testing.T) {
	e := newEnv(t)
	e.getter.On(threadURL(aliceJob.PostURL), http.StatusOK, `{"posts":[]}`)

	rep, err := e.driver(t).Run(context.Background(), []models.Job{aliceJob})
	require.NoError(t, err)
	assert.Equal(t, Report{Empty: 1}, rep)
	ok, _ := e.store.Exists(storage.LedgerFile)
	assert.False(t, ok)

	e.serveGitHubScenario()
	rep, err = e.driver(t).Run(context.Background(), []models.Job{aliceJob})
	require.NoError(t, err)
	assert.Equal(t, Report{Archived: 1}, rep)
}

func TestProcess_UnreachableServiceIsRetryable(t *testing.T) {
	e := newEnv(t)

	outcome, err := e.driver(t).Process(context.Background(), aliceJob)
	assert.Equal(t, Empty, outcome)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	ok, _ := e.store.Exists(storage.LedgerFile)
	assert.False(t, ok)
}

func TestRun_PaperNotFoundStillRecordsJob(t *testing.T) {
	e := newEnv(t)
	job := models.Job{PostURL: "https://x.com/bob/status/222", Author: "bob", Date: "2024-02-02"}
	e.getter.
		On(threadURL(job.PostURL), http.StatusOK,
			`{"posts":[{"id":"222","author":"bob","timestamp":"2024-02-02T09:00:00Z","text":"Read https://arxiv.org/abs/2401.99999"}]}`).
		On(arxivAPI+"?id_list=2401.99999", http.StatusOK, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)

	rep, err := e.driver(t).Run(context.Background(), []models.Job{job})
	require.NoError(t, err)
	assert.Equal(t, Report{Archived: 1}, rep)

	note, err := e.store.Read("Tweets/2024-02-02 - bob - Read.md")
	require.NoError(t, err)
	assert.NotContains(t, string(note), "Paper:")
	papers, _ := e.store.Glob("arXiv/*")
	assert.Empty(t, papers)
	ledgerData, _ := e.store.Read(storage.LedgerFile)
	assert.Equal(t, "222\n", string(ledgerData))
}

func TestRun_ArticleWithErrorStatusIsLinked(t *testing.T) {
	e := newEnv(t)
	job := models.Job{PostURL: "https://x.com/dave/status/444", Author: "dave", Date: "2024-04-04"}
	e.getter.
		On(threadURL(job.PostURL), http.StatusOK,
			`{"posts":[{"id":"444","author":"dave","timestamp":"2024-04-04T09:00:00Z","text":"Worth it https://x.substack.com/p/post"}]}`).
		On("https://x.substack.com/p/post", http.StatusForbidden,
			`<html><head><title>Paywalled Post</title></head><body><p>Teaser.</p></body></html>`)

	rep, err := e.driver(t).Run(context.Background(), []models.Job{job})
	require.NoError(t, err)
	assert.Equal(t, Report{Archived: 1}, rep)

	note, err := e.store.Read("Tweets/2024-04-04 - dave - Worth it.md")
	require.NoError(t, err)
	assert.Contains(t, string(note), "\n\nArticle: [[Substack/Paywalled Post.md]]")
	ok, _ := e.store.Exists("Substack/Paywalled Post.md")
	assert.True(t, ok)
}

func TestRun_MixedLinksAndMedia(t *testing.T) {
	e := newEnv(t)
	job := models.Job{PostURL: "https://x.com/carol/status/333?s=20", Author: "carol", Date: "2024-03-03"}
	e.getter.
		On(threadURL(job.PostURL), http.StatusOK, `{"posts":[
			{"id":"334","author":"carol","timestamp":"2024-03-03T09:05:00Z","text":"and https://example.com/misc","media":[{"url":"https://m.test/clip.mp4"}]},
			{"id":"333","author":"carol","timestamp":"2024-03-03T09:00:00Z","text":"Thread time","media":[{"url":"https://m.test/pic.png"}]}
		]}`).
		On("https://m.test/pic.png", http.StatusOK, "png").
		On("https://m.test/clip.mp4", http.StatusOK, "mp4")

	rep, err := e.driver(t).Run(context.Background(), []models.Job{job})
	require.NoError(t, err)
	assert.Equal(t, Report{Archived: 1}, rep)

	note, err := e.store.Read("Tweets/2024-03-03 - carol - Thread time.md")
	require.NoError(t, err)
	assert.Contains(t, string(note), "![[Media/Images/pic.png]]")
	assert.Contains(t, string(note), "![[Media/Videos/clip.mp4]]")
	sink, _ := e.store.Read(storage.UnprocessedFile)
	assert.Equal(t, "https://example.com/misc\n", string(sink))
	ledgerData, _ := e.store.Read(storage.LedgerFile)
	assert.Equal(t, "333\n", string(ledgerData))
}

func TestRun_CancelledContext(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.driver(t).Run(ctx, []models.Job{aliceJob})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.getter.Calls())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(aliceJob))
	assert.ErrorIs(t, Validate(models.Job{PostURL: ""}), ErrInvalidJob)
}

func TestWatchJobs_TriggersOnChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tweets.csv")
	require.NoError(t, os.WriteFile(src, []byte("Tweet URL\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- WatchJobs(ctx, filepath.Join(dir, "*.csv"), 20*time.Millisecond, testutil.Logger(), func(context.Context) {
			runs.Add(1)
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte("Tweet URL\nhttps://x.com/a/status/1\n"), 0o644))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
