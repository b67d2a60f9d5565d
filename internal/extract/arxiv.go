package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/sanitize"
	"github.com/starford/birbbrain/internal/storage"
)

// DefaultArXivAPI is the public Atom query endpoint.
const DefaultArXivAPI = "http://export.arxiv.org/api/query"

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Primary struct {
		Term string `xml:"term,attr"`
	} `xml:"http://arxiv.org/schemas/atom primary_category"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// missing reports the placeholder entry arXiv returns for unknown ids.
func (e atomEntry) missing() bool {
	return e.ID == "" || strings.Contains(e.ID, "/api/errors") || strings.TrimSpace(e.Title) == "Error"
}

func (e atomEntry) category() string {
	if e.Primary.Term != "" {
		return e.Primary.Term
	}
	if len(e.Categories) > 0 {
		return e.Categories[0].Term
	}
	return ""
}

// ArXiv archives paper metadata and the PDF.
type ArXiv struct {
	store  storage.Provider
	getter fetch.Getter
	apiURL string
	logger *slog.Logger
}

// NewArXiv creates an arXiv extractor. An empty apiURL selects the public API.
func NewArXiv(store storage.Provider, getter fetch.Getter, apiURL string, logger *slog.Logger) *ArXiv {
	if apiURL == "" {
		apiURL = DefaultArXivAPI
	}
	return &ArXiv{store: store, getter: getter, apiURL: apiURL, logger: logger}
}

// PaperID returns the final path segment of an arXiv URL, without a .pdf suffix.
func PaperID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("arxiv: parse %q: %w", rawURL, err)
	}
	id := strings.TrimSuffix(path.Base(strings.TrimSuffix(u.Path, "/")), ".pdf")
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("arxiv: no paper id in %q: %w", rawURL, apperr.ErrNotFound)
	}
	return id, nil
}

// Extract implements Extractor.
func (x *ArXiv) Extract(ctx context.Context, rawURL, dir string) (*models.Note, error) {
	id, err := PaperID(rawURL)
	if err != nil {
		return nil, err
	}

	matches, err := x.store.Glob(dir + "/* - " + globEscape(id) + ".md")
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		x.logger.Debug("paper already archived", "path", matches[0])
		return &models.Note{Title: id, Path: matches[0]}, nil
	}

	query := x.apiURL + "?id_list=" + url.QueryEscape(id)
	resp, err := x.getter.Get(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: fetch %s: %w", id, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("arxiv: %s: HTTP %d: %w", id, resp.StatusCode, apperr.ErrNotFound)
	}
	var feed atomFeed
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: decode %s: %w", id, err)
	}
	if len(feed.Entries) == 0 || feed.Entries[0].missing() {
		return nil, fmt.Errorf("arxiv: %s: %w", id, apperr.ErrNotFound)
	}
	entry := feed.Entries[0]

	title := strings.Join(strings.Fields(entry.Title), " ")
	name := sanitize.Filename(title) + " - " + id
	pdfName := name + ".pdf"
	if err := x.downloadPDF(ctx, strings.Replace(entry.ID, "abs", "pdf", 1)+".pdf", dir+"/"+pdfName); err != nil {
		return nil, err
	}

	cat := entry.category()
	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", title)
	fmt.Fprintf(&body, "**Categories:** %s\n\n", cat)
	fmt.Fprintf(&body, "**PDF:** [[%s]]\n\n", pdfName)
	body.WriteString(strings.TrimSpace(entry.Summary))
	body.WriteString("\n")

	tags := []string{"arxiv"}
	if cat != "" {
		tags = append(tags, cat)
	}
	note := &models.Note{
		Title: title,
		Body:  body.String(),
		Frontmatter: models.Frontmatter{
			Title:  title,
			Source: rawURL,
			Tags:   tags,
		},
		Attachments: []string{dir + "/" + pdfName},
		Path:        dir + "/" + name + ".md",
	}
	if _, err := writeIfAbsent(x.store, note); err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}
	return note, nil
}

// downloadPDF fetches pdfURL into rel unless rel already exists.
func (x *ArXiv) downloadPDF(ctx context.Context, pdfURL, rel string) error {
	ok, err := x.store.Exists(rel)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	resp, err := x.getter.Get(ctx, pdfURL, nil)
	if err != nil {
		return fmt.Errorf("arxiv: fetch pdf %s: %w", pdfURL, err)
	}
	if !resp.OK() {
		return fmt.Errorf("arxiv: fetch pdf %s: HTTP %d", pdfURL, resp.StatusCode)
	}
	if err := x.store.Write(rel, resp.Body); err != nil {
		return fmt.Errorf("arxiv: %w", err)
	}
	return nil
}

// globEscape quotes doublestar metacharacters in a literal.
func globEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
