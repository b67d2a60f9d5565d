package parser

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Render produces a Markdown document with fm as YAML frontmatter followed by body.
// A nil fm renders the body alone.
func Render(fm any, body string) ([]byte, error) {
	var buf bytes.Buffer
	if fm != nil {
		head, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("parser: render frontmatter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(head)
		buf.WriteString("---\n\n")
	}
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// WikiLink formats a vault-relative path as a [[link]].
func WikiLink(path string) string {
	return "[[" + path + "]]"
}

// Embed formats a vault-relative path as an ![[embed]].
func Embed(path string) string {
	return "!" + WikiLink(path)
}
