// Package mcpserver exposes an Engine's query surface over the Model
// Context Protocol, wiring one tool per spec.md §6 method and
// forwarding to the engine, the search database and the snippet
// reader underneath it.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/montanetech/codeix-sub000/internal/diag"
	"github.com/montanetech/codeix-sub000/internal/engine"
	"github.com/montanetech/codeix-sub000/internal/model"
	"github.com/montanetech/codeix-sub000/internal/searchdb"
)

// Server wraps an mcp.Server bound to one Engine.
type Server struct {
	eng    *engine.Engine
	server *mcp.Server
}

// New builds the MCP server and registers every tool against eng.
func New(eng *engine.Engine) *Server {
	s := &Server{eng: eng}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codeix-mcp-server",
		Version: "0.1.0",
	}, nil)
	s.registerTools()
	return s
}

// Run blocks serving over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "Ranked full-text search over indexed files, symbols and text blocks across every mounted project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":   {Type: "string", Description: "Search query"},
				"scope":   {Type: "string", Description: "Entity scope: all, file, symbol, or text"},
				"kind":    {Type: "string", Description: "Kind filter, meaning depends on scope"},
				"path":    {Type: "string", Description: "Glob filtering matched paths"},
				"project": {Type: "string", Description: "Restrict to one project key"},
				"limit":   {Type: "integer", Description: "Maximum results"},
				"offset":  {Type: "integer", Description: "Results to skip before the limit window"},
			},
			Required: []string{"query"},
		},
	}, s.handleSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_file_symbols",
		Description: "List every symbol declared in a file, ordered by line.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
				"file":    {Type: "string"},
			},
			Required: []string{"file"},
		},
	}, s.handleGetFileSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_symbol_children",
		Description: "List the symbols nested under a given parent symbol in one file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
				"file":    {Type: "string"},
				"parent":  {Type: "string"},
			},
			Required: []string{"file", "parent"},
		},
	}, s.handleGetSymbolChildren)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_imports",
		Description: "List the import-kind symbols declared in a file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
				"file":    {Type: "string"},
			},
			Required: []string{"file"},
		},
	}, s.handleGetImports)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_callers",
		Description: "List references to a named symbol, optionally filtered by kind and project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":    {Type: "string"},
				"kind":    {Type: "string", Description: "call, import, or type_annotation"},
				"project": {Type: "string"},
			},
			Required: []string{"name"},
		},
	}, s.handleGetCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_callees",
		Description: "List references made by a named caller, optionally filtered by kind and project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"caller":  {Type: "string"},
				"kind":    {Type: "string", Description: "call, import, or type_annotation"},
				"project": {Type: "string"},
			},
			Required: []string{"caller"},
		},
	}, s.handleGetCallees)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_references",
		Description: "Search references whose name contains the query as a case-insensitive substring, optionally within one project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":   {Type: "string"},
				"project": {Type: "string"},
				"limit":   {Type: "integer"},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchReferences)

	s.server.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List every mounted project's key, root and manifest metadata.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleListProjects)

	s.server.AddTool(&mcp.Tool{
		Name:        "explore_dir_overview",
		Description: "Group a project's files by containing directory and language, with counts.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
			},
		},
	}, s.handleExploreDirOverview)

	s.server.AddTool(&mcp.Tool{
		Name:        "explore_dir_files",
		Description: "List files directly under a directory in a project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
				"dir":     {Type: "string", Description: "Parent directory path, \".\" for the project root"},
			},
			Required: []string{"dir"},
		},
	}, s.handleExploreDirFiles)

	s.server.AddTool(&mcp.Tool{
		Name:        "explore_files",
		Description: "List up to a capped number of files in a project matching a glob.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
				"glob":    {Type: "string"},
				"limit":   {Type: "integer"},
			},
		},
	}, s.handleExploreFiles)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_snippet",
		Description: "Read a source excerpt for a file and line range from disk.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"project": {Type: "string"},
				"file":    {Type: "string"},
				"start":   {Type: "integer"},
				"end":     {Type: "integer"},
				"k":       {Type: "integer", Description: "0: none, -1: all non-blank lines, >0: first k non-blank lines"},
			},
			Required: []string{"file", "start", "end"},
		},
	}, s.handleGetSnippet)

	s.server.AddTool(&mcp.Tool{
		Name:        "flush_index",
		Description: "Export every dirty, read-write mounted project's index to its on-disk bundle immediately.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleFlushIndex)
}

func decodeArgs(req *mcp.CallToolRequest, v interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(content)}}}, nil
}

func errResult(op string, err error) (*mcp.CallToolResult, error) {
	diag.Warn(op, err)
	content, _ := json.Marshal(map[string]string{"error": err.Error()})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

type searchParams struct {
	Query   string `json:"query"`
	Scope   string `json:"scope"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Project string `json:"project"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("search", err)
	}
	results := s.eng.DB.Search(p.Query, searchdb.SearchOptions{
		Scope:   model.EntityScope(p.Scope),
		Kind:    p.Kind,
		Path:    p.Path,
		Project: p.Project,
		Limit:   p.Limit,
		Offset:  p.Offset,
	})
	return jsonResult(results)
}

type fileParams struct {
	Project string `json:"project"`
	File    string `json:"file"`
}

func (s *Server) handleGetFileSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p fileParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("get_file_symbols", err)
	}
	return jsonResult(s.eng.DB.GetFileSymbols(p.Project, p.File))
}

type symbolChildrenParams struct {
	Project string `json:"project"`
	File    string `json:"file"`
	Parent  string `json:"parent"`
}

func (s *Server) handleGetSymbolChildren(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p symbolChildrenParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("get_symbol_children", err)
	}
	return jsonResult(s.eng.DB.GetSymbolChildren(p.Project, p.File, p.Parent))
}

func (s *Server) handleGetImports(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p fileParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("get_imports", err)
	}
	return jsonResult(s.eng.DB.GetImports(p.Project, p.File))
}

type refLookupParams struct {
	Name    string  `json:"name"`
	Caller  string  `json:"caller"`
	Kind    string  `json:"kind"`
	Project *string `json:"project"`
}

func (s *Server) handleGetCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p refLookupParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("get_callers", err)
	}
	var kind *model.RefKind
	if p.Kind != "" {
		k := model.RefKind(p.Kind)
		kind = &k
	}
	return jsonResult(s.eng.DB.GetCallers(p.Name, kind, p.Project))
}

func (s *Server) handleGetCallees(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p refLookupParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("get_callees", err)
	}
	var kind *model.RefKind
	if p.Kind != "" {
		k := model.RefKind(p.Kind)
		kind = &k
	}
	return jsonResult(s.eng.DB.GetCallees(p.Caller, kind, p.Project))
}

type searchRefsParams struct {
	Query   string `json:"query"`
	Project string `json:"project"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleSearchReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchRefsParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("search_references", err)
	}
	return jsonResult(s.eng.DB.SearchRefs(p.Query, p.Project, p.Limit))
}

func (s *Server) handleListProjects(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.eng.ListProjects())
}

type projectParams struct {
	Project string `json:"project"`
}

func (s *Server) handleExploreDirOverview(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p projectParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("explore_dir_overview", err)
	}
	return jsonResult(s.eng.DB.ExploreDirOverview(p.Project))
}

type dirFilesParams struct {
	Project string `json:"project"`
	Dir     string `json:"dir"`
}

func (s *Server) handleExploreDirFiles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p dirFilesParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("explore_dir_files", err)
	}
	return jsonResult(s.eng.DB.ExploreDirFiles(p.Project, p.Dir))
}

type exploreFilesParams struct {
	Project string `json:"project"`
	Glob    string `json:"glob"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleExploreFiles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p exploreFilesParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("explore_files", err)
	}
	files, capped := s.eng.DB.ExploreFilesCapped(p.Project, p.Glob, p.Limit)
	return jsonResult(map[string]interface{}{"files": files, "capped": capped})
}

type snippetParams struct {
	Project string `json:"project"`
	File    string `json:"file"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	K       int    `json:"k"`
}

func (s *Server) handleGetSnippet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p snippetParams
	if err := decodeArgs(req, &p); err != nil {
		return errResult("get_snippet", err)
	}
	text, ok := s.eng.Snippet(p.Project, p.File, p.Start, p.End, p.K)
	return jsonResult(map[string]interface{}{"snippet": text, "ok": ok})
}

func (s *Server) handleFlushIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.eng.FlushAll()
	return jsonResult(map[string]bool{"flushed": true})
}
