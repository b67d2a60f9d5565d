package links

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/storage"
	"github.com/starford/birbbrain/internal/testutil"
)

func TestClassify(t *testing.T) {
	c := DefaultClassifier()
	tests := map[string]Kind{
		"https://github.com/acme/widget":         Repository,
		"https://GitHub.com/acme/widget":         Repository,
		"https://someone.substack.com/p/post":    Article,
		"https://medium.com/@me/post-123":        Article,
		"https://arxiv.org/abs/2301.00001":       Paper,
		"https://example.com/page":               Unknown,
		"https://example.com/?next=github.com/x": Unknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, c.Classify(in), in)
	}
}

func TestClassify_Priority(t *testing.T) {
	c := Classifier{
		RepositoryDomains: []string{"example.com"},
		ArticleDomains:    []string{"example.com"},
		PaperDomains:      []string{"example.com"},
	}
	assert.Equal(t, Repository, c.Classify("https://example.com/x"))
	c.RepositoryDomains = nil
	assert.Equal(t, Article, c.Classify("https://example.com/x"))
}

func TestFind(t *testing.T) {
	text := "See https://a.example/x, and (https://b.example/y). Again https://a.example/x\nhttp://c.example"
	assert.Equal(t, []string{"https://a.example/x", "https://b.example/y", "http://c.example"}, Find(text))
	assert.Empty(t, Find("no links [[GitHub/widget.md]]"))
}

func TestFind_KeepsBalancedBrackets(t *testing.T) {
	text := "Read https://en.wikipedia.org/wiki/Go_(language). Also (see https://en.wikipedia.org/wiki/C_(programming_language))"
	assert.Equal(t, []string{
		"https://en.wikipedia.org/wiki/Go_(language)",
		"https://en.wikipedia.org/wiki/C_(programming_language)",
	}, Find(text))
}

func TestRoute_UnknownKeepsBalancedParen(t *testing.T) {
	_, store := testutil.TestVault(t)
	require.NoError(t, store.Write("Tweets/n.md", []byte("body")))
	r := NewRouter(store, DefaultClassifier(), Extractors{}, testutil.Logger(), nil)

	_, err := r.Route(context.Background(), "see https://en.wikipedia.org/wiki/Go_(language)", "Tweets/n.md")
	require.NoError(t, err)
	sink, _ := store.Read(storage.UnprocessedFile)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Go_(language)\n", string(sink))
}

type recorder struct{ calls []string }

func (r *recorder) record(tag, u string) error {
	r.calls = append(r.calls, tag+" "+u)
	return nil
}

func (r *recorder) Repository(_ context.Context, u string) error { return r.record("R", u) }
func (r *recorder) Article(_ context.Context, u string) error    { return r.record("A", u) }
func (r *recorder) Paper(_ context.Context, u string) error      { return r.record("P", u) }
func (r *recorder) Unknown(_ context.Context, u string) error    { return r.record("U", u) }

func TestDispatch(t *testing.T) {
	rec := &recorder{}
	for _, l := range DefaultClassifier().Scan("https://arxiv.org/abs/1 https://github.com/a/b https://x.test") {
		require.NoError(t, l.Dispatch(context.Background(), rec))
	}
	assert.Equal(t, []string{"P https://arxiv.org/abs/1", "R https://github.com/a/b", "U https://x.test"}, rec.calls)
	assert.Error(t, Link{URL: "u", Kind: Kind(99)}.Dispatch(context.Background(), rec))
}

// fakeExtractor writes nothing and returns a note under dir named after the URL's last segment.
type fakeExtractor struct {
	err   error
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, rawURL, dir string) (*models.Note, error) {
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	return &models.Note{Path: dir + "/" + name + ".md"}, nil
}

func TestRoute_OneOfEachKind(t *testing.T) {
	_, store := testutil.TestVault(t)
	require.NoError(t, store.Write("Tweets/n.md", []byte("# Thread by alice\n")))
	repo, art, paper := &fakeExtractor{}, &fakeExtractor{}, &fakeExtractor{}
	r := NewRouter(store, DefaultClassifier(), Extractors{Repository: repo, Article: art, Paper: paper}, testutil.Logger(), nil)

	text := "https://arxiv.org/abs/p1 then https://x.substack.com/p/a1 and https://github.com/acme/widget plus https://example.com/z"
	sum, err := r.Route(context.Background(), text, "Tweets/n.md")
	require.NoError(t, err)
	assert.Equal(t, Summary{Backlinks: 3, Unprocessed: 1}, sum)

	data, _ := store.Read("Tweets/n.md")
	want := "# Thread by alice\n" +
		"\n\nPaper: [[arXiv/p1.md]]" +
		"\n\nArticle: [[Substack/a1.md]]" +
		"\n\nGitHub: [[GitHub/widget.md]]"
	assert.Equal(t, want, string(data))

	sink, _ := store.Read(storage.UnprocessedFile)
	assert.Equal(t, "https://example.com/z\n", string(sink))
	assert.Len(t, repo.calls, 1)
	assert.Len(t, art.calls, 1)
	assert.Len(t, paper.calls, 1)
}

func TestRoute_FailuresLeaveNoteUntouched(t *testing.T) {
	_, store := testutil.TestVault(t)
	require.NoError(t, store.Write("Tweets/n.md", []byte("body")))
	ex := Extractors{
		Repository: &fakeExtractor{err: apperr.ErrNotFound},
		Article:    &fakeExtractor{err: errors.New("HTTP 503")},
		Paper:      &fakeExtractor{err: apperr.ErrNotFound},
	}
	r := NewRouter(store, DefaultClassifier(), ex, testutil.Logger(), nil)

	sum, err := r.Route(context.Background(), "https://github.com/a/b https://medium.com/x https://arxiv.org/abs/1", "Tweets/n.md")
	require.NoError(t, err)
	assert.Equal(t, Summary{NotFound: 2, Failed: 1}, sum)
	data, _ := store.Read("Tweets/n.md")
	assert.Equal(t, "body", string(data))
	ok, _ := store.Exists(storage.UnprocessedFile)
	assert.False(t, ok)
}

func TestRoute_MissingNoteIsError(t *testing.T) {
	_, store := testutil.TestVault(t)
	r := NewRouter(store, DefaultClassifier(), Extractors{Repository: &fakeExtractor{}}, testutil.Logger(), nil)
	_, err := r.Route(context.Background(), "https://github.com/a/b", "Tweets/missing.md")
	assert.Error(t, err)
}
