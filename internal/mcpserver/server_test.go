package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/query"
	"github.com/starford/dagaz/internal/testutil"
)

func testServer(t *testing.T) (*Server, *journal.Service) {
	t.Helper()
	svc, st := testutil.TestService(t)
	srv := New(svc, query.NewEngine(st))
	return srv, svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we invoke
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_entries":
		result, err = srv.searchEntries(ctx, req)
	case "read_entry":
		result, err = srv.readEntry(ctx, req)
	case "create_entry":
		result, err = srv.createEntry(ctx, req)
	case "link_entries":
		result, err = srv.linkEntries(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadEntry(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_entry", map[string]interface{}{
		"body":    "morning pages",
		"created": "2024-03-01 08:15",
		"tags":    "writing,daily",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if resultText(r) != "created entry 1" {
		t.Errorf("create result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_entry", map[string]interface{}{"id": 1})
	text := resultText(r)
	if !strings.Contains(text, "morning pages") || !strings.Contains(text, "2024-03-01T08:15") {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateEntry_BadTimestamp(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_entry", map[string]interface{}{
		"body":    "x",
		"created": "March 1st",
	})
	if !r.IsError {
		t.Error("expected error for malformed timestamp")
	}
}

func TestReadEntryMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_entry", map[string]interface{}{"id": 7})
	if !r.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestSearchEntries(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_entry", map[string]interface{}{
		"body": "grocery run", "created": "2024-01-05 12:00", "tags": "errands",
	})
	_ = callTool(t, srv, "create_entry", map[string]interface{}{
		"body": "project kickoff", "created": "2024-02-05 12:00", "tags": "work",
	})

	r := callTool(t, srv, "search_entries", map[string]interface{}{"body": "KICKOFF"})
	text := resultText(r)
	if !strings.Contains(text, `"total":1`) {
		t.Errorf("body search = %q", text)
	}

	r = callTool(t, srv, "search_entries", map[string]interface{}{
		"tags": "errands", "from": "2024-01-01 00:00", "to": "2024-01-31 23:59",
	})
	text = resultText(r)
	if !strings.Contains(text, `"total":1`) {
		t.Errorf("combined search = %q", text)
	}

	r = callTool(t, srv, "search_entries", map[string]interface{}{"tag_mode": "bogus", "tags": "x"})
	if !r.IsError {
		t.Error("expected error for unknown tag mode")
	}
}

func TestLinkEntries(t *testing.T) {
	srv, svc := testServer(t)
	_ = callTool(t, srv, "create_entry", map[string]interface{}{"body": "parent"})
	_ = callTool(t, srv, "create_entry", map[string]interface{}{"body": "child"})

	r := callTool(t, srv, "link_entries", map[string]interface{}{"child": 2, "parent": 1})
	if r.IsError {
		t.Fatalf("link failed: %s", resultText(r))
	}

	e, err := svc.Get(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if e.Parent != 1 {
		t.Errorf("parent = %d, want 1", e.Parent)
	}

	// Reverse link would close a cycle.
	r = callTool(t, srv, "link_entries", map[string]interface{}{"child": 1, "parent": 2})
	if !r.IsError {
		t.Error("expected error for cycle-closing link")
	}
}

func TestListTags(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_tags", map[string]interface{}{})
	if resultText(r) != "no tags in use" {
		t.Errorf("empty tags = %q", resultText(r))
	}

	_ = callTool(t, srv, "create_entry", map[string]interface{}{"body": "a", "tags": "zeta,alpha"})
	r = callTool(t, srv, "list_tags", map[string]interface{}{})
	if resultText(r) != "alpha\nzeta" {
		t.Errorf("tags = %q, want alpha\\nzeta", resultText(r))
	}
}
