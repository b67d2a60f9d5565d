// Package thread fetches conversations from the thread service and renders
// them into vault notes.
package thread

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/fetch"
	"github.com/starford/birbbrain/internal/models"
)

// Fetcher returns the full conversation a post belongs to.
type Fetcher interface {
	Fetch(ctx context.Context, postURL string) (models.Thread, error)
}

// Client reads threads from an HTTP service answering
// GET <service>?url=<post url> with {"posts": [...]}.
type Client struct {
	getter     fetch.Getter
	serviceURL string
}

// NewClient creates a thread service client.
func NewClient(getter fetch.Getter, serviceURL string) *Client {
	return &Client{getter: getter, serviceURL: serviceURL}
}

type threadResponse struct {
	Posts []models.Post `json:"posts"`
}

// Fetch implements Fetcher. Every failure to obtain posts, including
// transport errors and undecodable bodies, wraps apperr.ErrEmptyThread.
func (c *Client) Fetch(ctx context.Context, postURL string) (models.Thread, error) {
	u, err := url.Parse(c.serviceURL)
	if err != nil {
		return models.Thread{}, fmt.Errorf("thread: service url: %w", err)
	}
	q := u.Query()
	q.Set("url", postURL)
	u.RawQuery = q.Encode()

	resp, err := c.getter.Get(ctx, u.String(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return models.Thread{}, fmt.Errorf("thread: fetch %s: %w: %w", postURL, apperr.ErrEmptyThread, err)
	}
	if !resp.OK() {
		return models.Thread{}, fmt.Errorf("thread: fetch %s: HTTP %d: %w", postURL, resp.StatusCode, apperr.ErrEmptyThread)
	}
	var body threadResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return models.Thread{}, fmt.Errorf("thread: decode %s: %w: %w", postURL, apperr.ErrEmptyThread, err)
	}
	t := models.NewThread(body.Posts)
	if t.Empty() {
		return t, fmt.Errorf("thread: %s: %w", postURL, apperr.ErrEmptyThread)
	}
	return t, nil
}
