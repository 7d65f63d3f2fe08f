// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes journal tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/query"
	"github.com/starford/dagaz/internal/stamp"
)

// Server wraps the MCP server with journal tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *journal.Service
	engine *query.Engine
}

// New creates a new MCP server with all journal tools registered.
func New(svc *journal.Service, engine *query.Engine) *Server {
	s := &Server{svc: svc, engine: engine}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Search journal entries by body text, tags, and creation date range. "+
			"All given criteria must hold at once; results are entry ids in chronological order."),
		mcp.WithString("body", mcp.Description("Case-insensitive substring to find in entry bodies")),
		mcp.WithString("tags", mcp.Description("Comma-separated tag labels")),
		mcp.WithString("tag_mode", mcp.Description("One of any_of, at_least, only, untagged (default any_of)")),
		mcp.WithString("from", mcp.Description("Earliest creation time, format 'YYYY-MM-DD HH:MM'")),
		mcp.WithString("to", mcp.Description("Latest creation time, format 'YYYY-MM-DD HH:MM'")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read a journal entry: body, creation time, tags, attachments, and relations."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Entry id")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create a new journal entry. Timestamps MUST use the canonical "+
			"'YYYY-MM-DD HH:MM' format; read the dagaz://entry-format resource first."),
		mcp.WithString("body", mcp.Required(), mcp.Description("Entry body text")),
		mcp.WithString("created", mcp.Description("Creation time 'YYYY-MM-DD HH:MM' (empty for now)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tag labels")),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("link_entries",
		mcp.WithDescription("Link a child entry under a parent entry. Each entry may have at "+
			"most one parent and links may not form cycles."),
		mcp.WithNumber("child", mcp.Required(), mcp.Description("Child entry id")),
		mcp.WithNumber("parent", mcp.Required(), mcp.Description("Parent entry id")),
	), s.linkEntries)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List all tag labels in use, sorted alphabetically."),
	), s.listTags)

	// Resource: entry format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://entry-format", "Entry Format Contract",
			mcp.WithResourceDescription("Canonical entry and timestamp format that tools must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
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

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var preds []query.Predicate

	if body := req.GetString("body", ""); body != "" {
		preds = append(preds, query.Body{Query: body})
	}

	rawMode := req.GetString("tag_mode", "")
	rawTags := req.GetString("tags", "")
	if rawTags != "" || rawMode == "untagged" {
		mode := query.AnyOf
		if rawMode != "" {
			var err error
			if mode, err = query.ParseTagMode(rawMode); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		var labels []string
		if rawTags != "" {
			labels = strings.Split(rawTags, ",")
		}
		preds = append(preds, query.Tags{Mode: mode, Labels: labels})
	}

	from := req.GetString("from", "")
	to := req.GetString("to", "")
	if from != "" || to != "" {
		d := query.Date{Mode: query.Continuous}
		var err error
		if from != "" {
			if d.Lo, err = stamp.Parse(from); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		if to != "" {
			if d.Hi, err = stamp.Parse(to); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		preds = append(preds, d)
	}

	ids, err := s.engine.Run(ctx, preds...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(map[string]any{"entries": ids, "total": len(ids)})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.Get(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entry %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(e, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	draft := journal.Draft{Body: body}
	if raw := req.GetString("created", ""); raw != "" {
		if draft.Created, err = stamp.Parse(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if raw := req.GetString("tags", ""); raw != "" {
		draft.Tags = strings.Split(raw, ",")
	}

	id, err := s.svc.Create(ctx, draft)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created entry %d", id)), nil
}

func (s *Server) linkEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	child, err := req.RequireInt("child")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent, err := req.RequireInt("parent")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Link(ctx, int64(child), int64(parent)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked entry %d under %d", child, parent)), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.engine.AllTags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags in use"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, "\n")), nil
}

func (s *Server) readEntryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://entry-format",
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
