package models

import (
	"path"
	"sort"
	"strings"
	"time"
)

// Post is one message of a conversation as returned by the thread service.
type Post struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Timestamp time.Time  `json:"timestamp"`
	Body      string     `json:"text"`
	Media     []MediaRef `json:"media,omitempty"`
}

// MediaRef points at a remote media file attached to a post.
type MediaRef struct {
	SourceURL string `json:"url"`
}

// MediaKind distinguishes images from videos in the vault media tree.
type MediaKind int

const (
	MediaVideo MediaKind = iota
	MediaImage
)

func (k MediaKind) String() string {
	if k == MediaImage {
		return "image"
	}
	return "video"
}

// StoredMedia is a media file that exists inside the vault.
type StoredMedia struct {
	Path string // relative to the vault root
	Kind MediaKind
}

// Thread is the ordered list of posts of one conversation, root post first.
type Thread struct {
	Posts []Post
}

// NewThread copies posts and sorts them by ascending timestamp. Posts with
// equal timestamps keep the order the service returned them in.
func NewThread(posts []Post) Thread {
	sorted := make([]Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return Thread{Posts: sorted}
}

// Empty reports whether the thread has no posts.
func (t Thread) Empty() bool { return len(t.Posts) == 0 }

// Root returns the first post. The thread must not be empty.
func (t Thread) Root() Post { return t.Posts[0] }

// Job is one row of the job source.
type Job struct {
	PostURL   string
	Author    string
	Date      string
	Timestamp string
}

// ID returns the final path segment of the post URL, which identifies the
// job in the processed ledger.
func (j Job) ID() string {
	raw := strings.TrimSpace(j.PostURL)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimRight(raw, "/")
	return path.Base(raw)
}
