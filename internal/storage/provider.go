// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/birbbrain/internal/models"

// Vault subdirectories. Each writer owns exactly one of them.
const (
	DirThreads  = "Tweets"
	DirImages   = "Media/Images"
	DirVideos   = "Media/Videos"
	DirGitHub   = "GitHub"
	DirArticles = "Substack"
	DirPapers   = "arXiv"

	LedgerFile      = "processed.log"
	UnprocessedFile = "unprocessed_links.txt"
)

// Layout lists every directory created under the vault root at start-up.
var Layout = []string{DirThreads, DirImages, DirVideos, DirGitHub, DirArticles, DirPapers}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of path.
	Write(path string, content []byte) error
	// Exists reports whether a regular file is present at path.
	Exists(path string) (bool, error)
	// Append rewrites path as its current content followed by extra.
	// Appends to the same path never interleave.
	Append(path string, extra []byte) error
	// AppendLine adds line plus a newline to path, creating it if absent.
	AppendLine(path, line string) error
	// Glob returns the files matching a doublestar pattern, sorted.
	Glob(pattern string) ([]string, error)
}
