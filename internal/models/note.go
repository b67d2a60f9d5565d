// Package models defines the domain types for birbbrain.
package models

import "time"

// Note is one Markdown file in the vault. Once written, the file on disk is
// authoritative; a Note value only describes what was written.
type Note struct {
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Frontmatter Frontmatter `json:"frontmatter"`
	Attachments []string    `json:"attachments,omitempty"`
	// Path is relative to the vault root, using forward slashes.
	Path string `json:"path"`
}

// Frontmatter is the YAML header rendered at the top of generated notes.
type Frontmatter struct {
	Title  string   `yaml:"title" json:"title"`
	Author string   `yaml:"author,omitempty" json:"author,omitempty"`
	Date   string   `yaml:"date,omitempty" json:"date,omitempty"`
	PostID string   `yaml:"post_id,omitempty" json:"post_id,omitempty"`
	Source string   `yaml:"source,omitempty" json:"source,omitempty"`
	Tags   []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link represents a directed edge between two notes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "inline" or "embed"
}
