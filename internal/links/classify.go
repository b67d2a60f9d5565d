// Package links finds URLs in note text, classifies them by host and routes
// each one to the extractor for its kind, splicing backlinks into the note.
package links

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var urlRe = regexp.MustCompile(`https?://\S+`)

// Kind is the closed set of link classifications.
type Kind int

const (
	Unknown Kind = iota
	Repository
	Article
	Paper
)

func (k Kind) String() string {
	switch k {
	case Repository:
		return "repository"
	case Article:
		return "article"
	case Paper:
		return "paper"
	default:
		return "unknown"
	}
}

// Link is a classified URL found in a note.
type Link struct {
	URL  string
	Kind Kind
}

// Handler has one method per Kind. Dispatch picks exactly one.
type Handler interface {
	Repository(ctx context.Context, rawURL string) error
	Article(ctx context.Context, rawURL string) error
	Paper(ctx context.Context, rawURL string) error
	Unknown(ctx context.Context, rawURL string) error
}

// Dispatch calls the Handler method matching l.Kind.
func (l Link) Dispatch(ctx context.Context, h Handler) error {
	switch l.Kind {
	case Repository:
		return h.Repository(ctx, l.URL)
	case Article:
		return h.Article(ctx, l.URL)
	case Paper:
		return h.Paper(ctx, l.URL)
	case Unknown:
		return h.Unknown(ctx, l.URL)
	default:
		return fmt.Errorf("links: invalid kind %d", int(l.Kind))
	}
}

// Classifier maps URLs to a Kind by host substring. Repository domains are
// tested first, then article domains, then paper domains.
type Classifier struct {
	RepositoryDomains []string
	ArticleDomains    []string
	PaperDomains      []string
}

// DefaultClassifier recognises GitHub, Substack/Medium and arXiv.
func DefaultClassifier() Classifier {
	return Classifier{
		RepositoryDomains: []string{"github.com"},
		ArticleDomains:    []string{"substack.com", "medium.com"},
		PaperDomains:      []string{"arxiv.org"},
	}
}

// Classify returns the Kind of rawURL. It performs no I/O.
func (c Classifier) Classify(rawURL string) Kind {
	host := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	switch {
	case containsAny(host, c.RepositoryDomains):
		return Repository
	case containsAny(host, c.ArticleDomains):
		return Article
	case containsAny(host, c.PaperDomains):
		return Paper
	default:
		return Unknown
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Find returns the distinct URLs in text in order of first appearance.
// Trailing sentence punctuation is not part of a URL.
func Find(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range urlRe.FindAllString(text, -1) {
		m = trimTrailing(m)
		if _, dup := seen[m]; dup || len(m) <= len("https://") {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// trimTrailing strips trailing punctuation. A closing bracket stays when the
// URL itself opened it, as in https://en.wikipedia.org/wiki/Go_(language).
func trimTrailing(u string) string {
	for len(u) > 0 {
		last := u[len(u)-1]
		if open, ok := closers[last]; ok {
			if strings.Count(u, string(open)) >= strings.Count(u, string(last)) {
				return u
			}
		} else if !strings.ContainsRune(`.,;:!?>"'`, rune(last)) {
			return u
		}
		u = u[:len(u)-1]
	}
	return u
}

// Scan finds and classifies every URL in text.
func (c Classifier) Scan(text string) []Link {
	urls := Find(text)
	out := make([]Link, 0, len(urls))
	for _, u := range urls {
		out = append(out, Link{URL: u, Kind: c.Classify(u)})
	}
	return out
}
