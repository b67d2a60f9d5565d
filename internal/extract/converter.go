package extract

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Readable is the main text of a page reduced to Markdown.
type Readable struct {
	Title    string
	Markdown string
}

// Converter turns article HTML into Markdown, keeping only the main content.
type Converter struct {
	md *md.Converter
}

// NewConverter creates a Converter with GitHub-flavoured output.
func NewConverter() *Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &Converter{md: c}
}

// noise is stripped before conversion.
var noise = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true, "header": true,
	"footer": true, "aside": true, "form": true, "button": true, "iframe": true,
	"svg": true,
}

var noiseClasses = []string{
	"subscribe", "subscription", "share", "comments", "footer", "navbar",
	"sidebar", "paywall", "related", "post-ufi",
}

// contentClasses mark the post body on common newsletter platforms.
var contentClasses = []string{"available-content", "body markup", "post-content", "postArticle-content"}

// Convert extracts the page title and main content of raw HTML.
func (c *Converter) Convert(raw []byte) (*Readable, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	title := metaContent(doc, "og:title")
	if title == "" {
		if n := find(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil {
			title = textOf(n)
		}
	}

	root := mainContent(doc)
	prune(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}
	text, err := c.md.ConvertString(buf.String())
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(blankRunRe.ReplaceAllString(text, "\n\n"))

	if title == "" {
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(line, "# ") {
				title = strings.TrimSpace(line[2:])
				break
			}
		}
	}
	return &Readable{Title: strings.Join(strings.Fields(title), " "), Markdown: text}, nil
}

func mainContent(doc *html.Node) *html.Node {
	for _, cls := range contentClasses {
		if n := find(doc, func(n *html.Node) bool { return hasClass(n, cls) }); n != nil {
			return n
		}
	}
	for _, tag := range []string{"article", "main"} {
		if n := find(doc, func(n *html.Node) bool { return n.Data == tag }); n != nil {
			return n
		}
	}
	if n := find(doc, func(n *html.Node) bool { return attr(n, "role") == "main" }); n != nil {
		return n
	}
	if n := find(doc, func(n *html.Node) bool { return n.Data == "body" }); n != nil {
		return n
	}
	return doc
}

// prune removes noise elements below n.
func prune(n *html.Node) {
	var drop []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node != n && node.Type == html.ElementNode && isNoise(node) {
			drop = append(drop, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, node := range drop {
		node.Parent.RemoveChild(node)
	}
}

func isNoise(n *html.Node) bool {
	if noise[n.Data] {
		return true
	}
	for _, cls := range noiseClasses {
		if hasClass(n, cls) {
			return true
		}
	}
	return false
}

// find returns the first element in document order matching pred.
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether every class in want is set on n.
func hasClass(n *html.Node, want string) bool {
	have := strings.Fields(attr(n, "class"))
	for _, w := range strings.Fields(want) {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(have) > 0
}

func metaContent(doc *html.Node, property string) string {
	n := find(doc, func(n *html.Node) bool {
		return n.Data == "meta" && (attr(n, "property") == property || attr(n, "name") == property)
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
