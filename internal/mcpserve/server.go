// Package mcpserve exposes the query engine, relation resolver and reference
// resolver as MCP tools.
package mcpserve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/agentic-research/contentgraph/internal/graph"
	"github.com/agentic-research/contentgraph/internal/query"
	"github.com/agentic-research/contentgraph/internal/ref"
	"github.com/agentic-research/contentgraph/internal/relations"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Handler holds the engines the tools call into.
type Handler struct {
	Query     *query.Engine
	Relations *relations.Resolver
	Refs      *ref.Resolver
	Logger    *zap.Logger
}

// NewServer registers every tool on a new MCP server.
func NewServer(h *Handler) *server.MCPServer {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	s := server.NewMCPServer("contentgraph", Version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("query",
		mcp.WithDescription("Query entries of one or more collections with optional field filters, sorting and pagination"),
		mcp.WithString("collections", mcp.Required(), mcp.Description("Comma-separated collection names")),
		mcp.WithString("where", mcp.Description("JSONPath filter evaluated per entry, e.g. $.tags[?(@ == 'go')]")),
		mcp.WithString("order_by", mcp.Description("Field path to sort on")),
		mcp.WithString("direction", mcp.Description("asc or desc")),
		mcp.WithNumber("limit", mcp.Description("Page size")),
		mcp.WithNumber("offset", mcp.Description("Entries to skip")),
		mcp.WithNumber("relations", mcp.Description("Attach relations up to this depth; 0 disables")),
	), h.handleQuery)

	s.AddTool(mcp.NewTool("relations",
		mcp.WithDescription("List the relations of one entry"),
		mcp.WithString("collection", mcp.Required()),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("types", mcp.Description("Comma-separated relation types, e.g. reference,referenced-by")),
		mcp.WithNumber("depth", mcp.Description("Indirect relation depth; values above 1 include indirect relations")),
	), h.handleRelations)

	s.AddTool(mcp.NewTool("resolve",
		mcp.WithDescription("Return an entry with every embedded reference resolved"),
		mcp.WithString("collection", mcp.Required()),
		mcp.WithString("id", mcp.Required()),
	), h.handleResolve)

	return s
}

// ServeStdio serves the tools over stdin/stdout until ctx ends or the client
// disconnects.
func ServeStdio(ctx context.Context, h *Handler) error {
	s := NewServer(h)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(s) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (h *Handler) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cols, err := req.RequireString("collections")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b := h.Query.Query(splitList(cols)...)
	if where := req.GetString("where", ""); where != "" {
		b.WherePath(where)
	}
	if field := req.GetString("order_by", ""); field != "" {
		b.OrderByField(field, query.ParseDirection(req.GetString("direction", "asc")))
	}
	if limit := req.GetInt("limit", -1); limit >= 0 {
		b.Limit(limit)
	}
	b.Offset(req.GetInt("offset", 0))
	if depth := req.GetInt("relations", 0); depth > 0 {
		b.WithRelations(true, depth)
	}

	res, err := b.Get(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (h *Handler) handleRelations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var types []graph.RelationType
	for _, name := range splitList(req.GetString("types", "")) {
		t, ok := graph.ParseType(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown relation type %q", name)), nil
		}
		types = append(types, t)
	}

	opts := h.Relations.WithDepth(req.GetInt("depth", 1))
	m, err := h.Relations.GetRelationsWith(ctx, opts, collection, id, types...)
	if errors.Is(err, relations.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("entry %s:%s not found", collection, id)), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(m)
}

func (h *Handler) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := h.Query.Find(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return mcp.NewToolResultError(fmt.Sprintf("entry %s:%s not found", collection, id)), nil
	}
	h.Logger.Debug("resolving entry", zap.String("entry", e.Key().String()))
	data, _ := h.Refs.ProcessData(ctx, e.Data).(map[string]any)
	return jsonResult(&content.Entry{
		Collection: e.Collection,
		ID:         e.ID,
		Data:       data,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
