// Package mcpadapter exposes document search to MCP tool callers.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
)

const (
	ToolSearch      = "search_case_documents"
	ToolAnswer      = "answer_case_question"
	ToolGetDocument = "get_case_document"
)

type Tools struct {
	search ports.SearchService
	docs   ports.DocumentService
}

func NewTools(search ports.SearchService, docs ports.DocumentService) *Tools {
	return &Tools{search: search, docs: docs}
}

func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false), server.WithRecovery())

	searchArgs := []mcp.ToolOption{
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language query.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of matches, default 5.")),
		mcp.WithNumber("threshold", mcp.Description("Minimum cosine similarity in [0, 1].")),
	}
	s.AddTool(mcp.NewTool(ToolSearch,
		append([]mcp.ToolOption{mcp.WithDescription("Similarity search over stored case document chunks.")}, searchArgs...)...,
	), tools.Search)
	s.AddTool(mcp.NewTool(ToolAnswer,
		append([]mcp.ToolOption{mcp.WithDescription("Answer a question grounded on retrieved case document chunks.")}, searchArgs...)...,
	), tools.Answer)
	s.AddTool(mcp.NewTool(ToolGetDocument,
		mcp.WithDescription("Fetch one stored document record with its extracted text."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(string(domain.KindStandalone), string(domain.KindCaseScoped))),
		mcp.WithString("id", mcp.Required()),
	), tools.GetDocument)
	return s
}

func (t *Tools) Search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	matches, err := t.search.Search(ctx, query, req.GetFloat("threshold", 0), req.GetInt("limit", 0))
	if err != nil {
		return toolError(ToolSearch, err), nil
	}
	if matches == nil {
		matches = []domain.SearchMatch{}
	}
	return jsonResult(map[string]any{"matches": matches, "count": len(matches)})
}

func (t *Tools) Answer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := t.search.Answer(ctx, question, req.GetFloat("threshold", 0), req.GetInt("limit", 0))
	if err != nil {
		return toolError(ToolAnswer, err), nil
	}
	return jsonResult(answer)
}

func (t *Tools) GetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawKind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := domain.ParseDocumentKind(rawKind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := t.docs.Get(ctx, domain.DocumentRef{Kind: kind, ID: id})
	if err != nil {
		return toolError(ToolGetDocument, err), nil
	}
	return jsonResult(doc)
}

// toolError reports failures inside the result so the calling model can react.
func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err.Error())
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
