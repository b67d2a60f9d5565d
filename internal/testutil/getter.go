package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/starford/birbbrain/internal/fetch"
)

// ErrNoRoute is returned by StubGetter for URLs it has no response for.
var ErrNoRoute = errors.New("stub getter: no route")

// StubGetter is an in-memory fetch.Getter keyed by exact URL.
type StubGetter struct {
	mu        sync.Mutex
	responses map[string]*fetch.Response
	calls     []string
	headers   map[string]map[string]string
}

// NewStubGetter creates an empty StubGetter.
func NewStubGetter() *StubGetter {
	return &StubGetter{
		responses: make(map[string]*fetch.Response),
		headers:   make(map[string]map[string]string),
	}
}

// On registers a response with the given status and body for url.
func (s *StubGetter) On(url string, status int, body string) *StubGetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[url] = &fetch.Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
	return s
}

// Get implements fetch.Getter.
func (s *StubGetter) Get(_ context.Context, url string, headers map[string]string) (*fetch.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	s.headers[url] = headers
	resp, ok := s.responses[url]
	if !ok {
		return nil, ErrNoRoute
	}
	return resp, nil
}

// Calls returns every requested URL in order.
func (s *StubGetter) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how often url was requested.
func (s *StubGetter) CallCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == url {
			n++
		}
	}
	return n
}

// HeadersFor returns the headers sent with the last request for url.
func (s *StubGetter) HeadersFor(url string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[url]
}
