// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the archive vault to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/birbbrain/internal/apperr"
	"github.com/starford/birbbrain/internal/index"
	"github.com/starford/birbbrain/internal/models"
	"github.com/starford/birbbrain/internal/noteservice"
)

const layoutURI = "birbbrain://vault-layout"

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"birbbrain",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through archived threads, repositories, articles and papers."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note in the vault."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the note (e.g. GitHub/widget.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes, most recently updated first."),
		mcp.WithString("kind", mcp.Description("Optional kind filter"),
			mcp.Enum(index.KindThread, index.KindRepo, index.KindArticle, index.KindPaper, index.KindOther)),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to or embed the specified vault path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("ingest_post",
		mcp.WithDescription("Archive a post: fetch its thread, media and linked resources into the vault. "+
			"Posts already in the processed ledger are skipped."),
		mcp.WithString("post_url", mcp.Required(), mcp.Description("URL of the post")),
		mcp.WithString("author", mcp.Description("Post author handle")),
		mcp.WithString("date", mcp.Description("Post date, YYYY-MM-DD")),
	), s.ingestPost)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Vault Layout",
			mcp.WithResourceDescription("Directory structure and link conventions of the archive vault."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.svc.ListNotes(ctx, index.ListQuery{
		Kind:  req.GetString("kind", ""),
		Tag:   req.GetString("tag", ""),
		Limit: req.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", r.Kind, r.Path, r.Title)
	}
	if total > len(rows) {
		fmt.Fprintf(&b, "(%d of %d)\n", len(rows), total)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, len(bl))
	for i, l := range bl {
		lines[i] = l.Source
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) ingestPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	postURL, err := req.RequireString("post_url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Ingest(ctx, models.Job{
		PostURL: postURL,
		Author:  req.GetString("author", ""),
		Date:    req.GetString("date", ""),
	})
	if res == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     VaultLayout,
		},
	}, nil
}
