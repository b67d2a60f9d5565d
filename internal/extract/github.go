package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/storage"
)

// DefaultGitHubAPI is the public REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

type repoInfo struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
}

// GitHub archives repository metadata and the README.
type GitHub struct {
	store  storage.Provider
	getter fetch.Getter
	apiURL string
	token  string
	logger *slog.Logger
}

// NewGitHub creates a GitHub extractor. An empty apiURL selects the public
// API; an empty token sends unauthenticated requests.
func NewGitHub(store storage.Provider, getter fetch.Getter, apiURL, token string, logger *slog.Logger) *GitHub {
	if apiURL == "" {
		apiURL = DefaultGitHubAPI
	}
	return &GitHub{
		store:  store,
		getter: getter,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		token:  token,
		logger: logger,
	}
}

// ParseRepo returns owner and repository name from a github.com URL.
func ParseRepo(rawURL string) (owner, repo string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("github: parse %q: %w", rawURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: no repository in %q: %w", rawURL, apperr.ErrNotFound)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Extract implements Extractor.
func (g *GitHub) Extract(ctx context.Context, rawURL, dir string) (*models.Note, error) {
	owner, repo, err := ParseRepo(rawURL)
	if err != nil {
		return nil, err
	}

	if cached, err := g.archived(dir, repo); err != nil {
		return nil, err
	} else if cached != "" {
		g.logger.Debug("repository already archived", "path", cached)
		return &models.Note{Title: owner + "/" + repo, Path: cached}, nil
	}

	endpoint := g.apiURL + "/repos/" + owner + "/" + repo
	resp, err := g.getter.Get(ctx, endpoint, g.headers("application/vnd.github+json"))
	if err != nil {
		return nil, fmt.Errorf("github: fetch %s: %w", endpoint, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("github: %s/%s: HTTP %d: %w", owner, repo, resp.StatusCode, apperr.ErrNotFound)
	}
	var info repoInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("github: decode %s: %w", endpoint, err)
	}
	if info.Name == "" {
		info.Name = repo
	}
	if info.FullName == "" {
		info.FullName = owner + "/" + repo
	}

	notePath := dir + "/" + path.Base(info.Name) + ".md"
	if ok, err := g.store.Exists(notePath); err != nil {
		return nil, err
	} else if ok {
		g.logger.Debug("repository already archived", "path", notePath)
		return &models.Note{Title: info.FullName, Path: notePath}, nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n", info.FullName)
	if info.Description != "" {
		fmt.Fprintf(&body, "%s\n\n", info.Description)
	}
	fmt.Fprintf(&body, "Stars: %d | Forks: %d\n\n", info.Stars, info.Forks)
	body.WriteString(g.readme(ctx, endpoint))

	tags := []string{"github"}
	if info.Language != "" {
		tags = append(tags, strings.ToLower(info.Language))
	}
	source := info.HTMLURL
	if source == "" {
		source = rawURL
	}
	note := &models.Note{
		Title: info.FullName,
		Body:  body.String(),
		Frontmatter: models.Frontmatter{
			Title:  info.FullName,
			Source: source,
			Tags:   tags,
		},
		Path: notePath,
	}
	if _, err := writeIfAbsent(g.store, note); err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}
	return note, nil
}

// archived returns the note already written for repo under dir, or "".
// GitHub names are case-insensitive, so the URL segment may differ in case
// from the API name the note was written under.
func (g *GitHub) archived(dir, repo string) (string, error) {
	exact := dir + "/" + repo + ".md"
	ok, err := g.store.Exists(exact)
	if err != nil {
		return "", err
	}
	if ok {
		return exact, nil
	}
	matches, err := g.store.Glob(dir + "/*.md")
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.EqualFold(strings.TrimSuffix(path.Base(m), ".md"), repo) {
			return m, nil
		}
	}
	return "", nil
}

// readme returns the raw README, or empty when the repository has none.
func (g *GitHub) readme(ctx context.Context, endpoint string) string {
	resp, err := g.getter.Get(ctx, endpoint+"/readme", g.headers("application/vnd.github.raw"))
	if err != nil {
		g.logger.Warn("readme fetch failed", "url", endpoint, "error", err)
		return ""
	}
	if !resp.OK() {
		return ""
	}
	return string(resp.Body)
}

func (g *GitHub) headers(accept string) map[string]string {
	h := map[string]string{"Accept": accept}
	if g.token != "" {
		h["Authorization"] = "Bearer " + g.token
	}
	return h
}
