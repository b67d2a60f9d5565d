package thread

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/birbbrain/internal/links"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/parser"
	"github.com/starford/birbbrain/internal/sanitize"
	"github.com/starford/birbbrain/internal/storage"
)

// PostTimeLayout formats the per-post section headers.
const PostTimeLayout = "2006-01-02 15:04:05"

var inlineURLRe = regexp.MustCompile(`https?://\S+`)

// MediaArchiver stores post attachments in the vault.
type MediaArchiver interface {
	Archive(ctx context.Context, refs []models.MediaRef) []models.StoredMedia
}

// LinkRouter archives the resources linked from a note.
type LinkRouter interface {
	Route(ctx context.Context, text, notePath string) (links.Summary, error)
}

// Builder writes one note per thread and routes its links.
type Builder struct {
	store    storage.Provider
	archiver MediaArchiver
	router   LinkRouter
	logger   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(store storage.Provider, archiver MediaArchiver, router LinkRouter, logger *slog.Logger) *Builder {
	return &Builder{store: store, archiver: archiver, router: router, logger: logger}
}

// Summary returns the sanitized first line of body with URLs removed.
func Summary(body string) string {
	first, _, _ := strings.Cut(body, "\n")
	return sanitize.FirstLine(inlineURLRe.ReplaceAllString(first, ""))
}

// NotePath returns the vault path of the note for job, whose root post body is rootBody.
func NotePath(job models.Job, rootBody string) string {
	summary := Summary(rootBody)
	if summary == "" {
		summary = sanitize.Filename(job.ID())
	}
	name := fmt.Sprintf("%s - %s - %s.md", sanitize.Filename(job.Date), sanitize.Filename(job.Author), summary)
	return storage.DirThreads + "/" + name
}

// Build renders thread as the note for job, overwriting any previous
// rendering, then routes every link in the written text. The thread must
// not be empty.
func (b *Builder) Build(ctx context.Context, job models.Job, t models.Thread) (*models.Note, error) {
	if t.Empty() {
		return nil, fmt.Errorf("thread: build %s: no posts", job.ID())
	}
	author := job.Author
	if author == "" {
		author = t.Root().Author
	}
	notePath := NotePath(job, t.Root().Body)
	title := "Thread by " + author

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n", title)
	var attachments []string
	for _, post := range t.Posts {
		stored := b.archiver.Archive(ctx, post.Media)
		fmt.Fprintf(&body, "\n### %s - %s\n", post.Author, post.Timestamp.UTC().Format(PostTimeLayout))
		body.WriteString(post.Body + "\n")
		for _, m := range stored {
			body.WriteString(parser.Embed(m.Path) + "\n")
			attachments = append(attachments, m.Path)
		}
	}

	note := &models.Note{
		Title: title,
		Body:  body.String(),
		Frontmatter: models.Frontmatter{
			Title:  title,
			Author: author,
			Date:   job.Date,
			PostID: job.ID(),
			Tags:   []string{"thread"},
		},
		Attachments: attachments,
		Path:        notePath,
	}
	data, err := parser.Render(note.Frontmatter, note.Body)
	if err != nil {
		return nil, fmt.Errorf("thread: %w", err)
	}
	if err := b.store.Write(notePath, data); err != nil {
		return nil, fmt.Errorf("thread: %w", err)
	}

	sum, err := b.router.Route(ctx, string(data), notePath)
	if err != nil {
		return nil, fmt.Errorf("thread: route links: %w", err)
	}
	b.logger.Info("thread archived",
		slog.String("path", notePath),
		slog.Int("posts", len(t.Posts)),
		slog.Int("media", len(attachments)),
		slog.Int("backlinks", sum.Backlinks),
		slog.Int("unprocessed", sum.Unprocessed),
	)
	return note, nil
}
