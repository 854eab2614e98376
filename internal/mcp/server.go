/*
Package mcp exposes the discovery engine as an MCP server over stdio.

The server speaks JSON-RPC 2.0 line-delimited on stdin/stdout and
offers three meta-tools:

  - registry_search  : scoped hybrid search across servers, tools, agents
  - registry_list    : list entities visible to the configured scope
  - registry_reindex : force re-embedding of an entity or everything

The caller scope is fixed at startup (flags on 'mcpgw serve'); the MCP
transport itself carries no identity.
*/
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mcpgw/registry/internal/engine"
	"github.com/mcpgw/registry/internal/scope"
	"github.com/mcpgw/registry/internal/store"
	"github.com/mcpgw/registry/internal/version"
)

// Server is the stdio MCP server.
type Server struct {
	engine *engine.Engine
	store  store.Store
	caller scope.CallerScope
	log    *zap.Logger

	in  io.Reader
	out io.Writer
}

// NewServer creates an MCP server bound to the given streams.
func NewServer(eng *engine.Engine, st store.Store, caller scope.CallerScope,
	in io.Reader, out io.Writer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine: eng,
		store:  st,
		caller: caller,
		log:    log,
		in:     in,
		out:    out,
	}
}

// Run processes requests until the input stream closes or the context
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		response := s.handleRequest(ctx, line)
		if response != nil {
			s.send(response)
		}
	}
	return scanner.Err()
}

// Request is an incoming MCP JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing MCP JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is an MCP JSON-RPC error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRequest(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: -32700, Message: "Parse error"},
		}
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(&req)
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(&req)
	case "tools/call":
		return s.handleToolsCall(ctx, &req)
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "mcpgw",
				"version": version.Version,
			},
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	tools := []map[string]interface{}{
		{
			"name": "registry_search",
			"description": `Search the registry for MCP servers, tools, and A2A agents using natural language.

Results are ranked by hybrid semantic + keyword relevance and restricted
to entities your scope may discover.`,
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Natural language description of the capability you need",
					},
					"maxResults": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum results per entity kind (default 10)",
					},
					"kinds": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string", "enum": []string{"server", "tool", "agent"}},
						"description": "Restrict results to these entity kinds",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			"name":        "registry_list",
			"description": "List registry entities visible to your scope, with enablement and safety status.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"kind": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"server", "agent"},
						"description": "Entity kind to list (default: server)",
					},
				},
			},
		},
		{
			"name":        "registry_reindex",
			"description": "Force re-embedding of one entity (by id) or of the whole registry (\"all\"). Admin only.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"target": map[string]interface{}{
						"type":        "string",
						"description": "Entity id or \"all\"",
					},
				},
				"required": []string{"target"},
			},
		},
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]interface{}{"tools": tools},
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params")
	}

	var (
		result interface{}
		err    error
	)
	switch params.Name {
	case "registry_search":
		result, err = s.callSearch(ctx, params.Arguments)
	case "registry_list":
		result, err = s.callList(params.Arguments)
	case "registry_reindex":
		result, err = s.callReindex(ctx, params.Arguments)
	default:
		return errorResponse(req.ID, -32602, fmt.Sprintf("Unknown tool: %s", params.Name))
	}
	if err != nil {
		return errorResponse(req.ID, -32000, err.Error())
	}

	text, merr := json.MarshalIndent(result, "", "  ")
	if merr != nil {
		return errorResponse(req.ID, -32000, merr.Error())
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": string(text)},
			},
		},
	}
}

func (s *Server) callSearch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		Query      string   `json:"query"`
		MaxResults int      `json:"maxResults"`
		Kinds      []string `json:"kinds"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	var kinds []store.Kind
	for _, k := range params.Kinds {
		kinds = append(kinds, store.Kind(k))
	}

	return s.engine.Discover(ctx, params.Query, s.caller, params.MaxResults, kinds)
}

func (s *Server) callList(args json.RawMessage) (interface{}, error) {
	var params struct {
		Kind string `json:"kind"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	kind := store.KindServer
	if params.Kind != "" {
		kind = store.Kind(params.Kind)
	}

	allowed, err := scope.AllowedIDs(s.store, s.caller, []store.Kind{kind})
	if err != nil {
		return nil, err
	}

	entities, err := s.store.ListEntities(store.Filter{Kinds: []store.Kind{kind}, DiscoverableOnly: true})
	if err != nil {
		return nil, err
	}

	type listed struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		Description string `json:"description"`
		Safety      string `json:"safety"`
	}
	visible := make([]listed, 0, len(entities))
	for _, e := range entities {
		if _, ok := allowed[e.ID]; !ok {
			continue
		}
		visible = append(visible, listed{
			ID:          e.ID,
			DisplayName: e.DisplayName,
			Description: e.Description,
			Safety:      string(e.Safety),
		})
	}
	return map[string]interface{}{"entities": visible}, nil
}

func (s *Server) callReindex(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if !s.caller.IsAdmin {
		return nil, fmt.Errorf("admin scope required")
	}

	var params struct {
		Target string `json:"target"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.Target == "" {
		return nil, fmt.Errorf("target is required")
	}

	if err := s.engine.Reindex(ctx, params.Target); err != nil {
		return nil, err
	}
	return map[string]string{"status": "ok"}, nil
}

func errorResponse(id interface{}, code int, msg string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func (s *Server) send(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}
