package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/montanetech/codeix-sub000/internal/engine"
	"github.com/montanetech/codeix-sub000/internal/events"
	"github.com/montanetech/codeix-sub000/internal/searchdb"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Options{Root: root, DBMode: searchdb.ModeFull})
	if err != nil {
		t.Fatal(err)
	}
	eng.Start(events.CacheModeLoad)
	t.Cleanup(eng.Shutdown)
	return New(eng), root
}

func callTool(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected exactly one content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleSearchFindsIndexedFile(t *testing.T) {
	s, _ := newTestServer(t)
	res := callTool(t, s.handleSearch, map[string]interface{}{"query": "main"})
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	var results []map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one search result")
	}
}

func TestHandleGetFileSymbolsReturnsMainFunction(t *testing.T) {
	s, _ := newTestServer(t)
	res := callTool(t, s.handleGetFileSymbols, map[string]interface{}{"file": "main.go"})
	var symbols []map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &symbols); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, sym := range symbols {
		if sym["name"] == "main" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a main symbol, got %+v", symbols)
	}
}

func TestHandleSearchReferencesFindsCallByName(t *testing.T) {
	root := t.TempDir()
	src := "package main\n\nfunc helper() {}\n\nfunc main() { helper() }\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(engine.Options{Root: root, DBMode: searchdb.ModeFull})
	if err != nil {
		t.Fatal(err)
	}
	eng.Start(events.CacheModeLoad)
	t.Cleanup(eng.Shutdown)
	s := New(eng)

	res := callTool(t, s.handleSearchReferences, map[string]interface{}{"query": "helper"})
	if res.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, res))
	}
	var refs []map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &refs); err != nil {
		t.Fatal(err)
	}
	if len(refs) == 0 {
		t.Fatalf("expected at least one reference to helper, got none")
	}
	for _, r := range refs {
		if r["name"] != "helper" {
			t.Fatalf("unexpected reference: %+v", r)
		}
	}
}

func TestHandleListProjectsReturnsRoot(t *testing.T) {
	s, _ := newTestServer(t)
	res := callTool(t, s.handleListProjects, nil)
	var projects []map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &projects); err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0]["Project"] != "" {
		t.Fatalf("expected exactly one root project, got %+v", projects)
	}
}

func TestHandleGetSnippetReadsSourceRange(t *testing.T) {
	s, _ := newTestServer(t)
	res := callTool(t, s.handleGetSnippet, map[string]interface{}{
		"file": "main.go", "start": 1, "end": 3, "k": -1,
	})
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok snippet, got %+v", body)
	}
}

func TestHandleFlushIndexReportsFlushed(t *testing.T) {
	s, _ := newTestServer(t)
	res := callTool(t, s.handleFlushIndex, nil)
	var body map[string]bool
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatal(err)
	}
	if !body["flushed"] {
		t.Fatalf("expected flushed=true, got %+v", body)
	}
}

func TestHandleSearchInvalidArgumentsReturnsErrorResult(t *testing.T) {
	s, _ := newTestServer(t)
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: []byte(`not-json`)}}
	res, err := s.handleSearch(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected an MCP-level error result for malformed arguments")
	}
}
