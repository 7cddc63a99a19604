package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tenderd/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
}

// NewMCPServer creates an MCP server exposing the tender review surface to
// assistants over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"tenderd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tenderd tender document processing: extracted fields, checklists and review packages with source citations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_tenders",
			mcp.WithDescription("List tenders with their current status."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListTenders(deps),
	)

	s.AddTool(
		mcp.NewTool("get_review_package",
			mcp.WithDescription("Return the full review package for a tender: extracted fields, checklist, summary blocks and the approval predicate."),
			mcp.WithString("tender_id", mcp.Description("Tender id"), mcp.Required()),
		),
		mcpGetReviewPackage(deps),
	)

	s.AddTool(
		mcp.NewTool("get_run_log",
			mcp.WithDescription("Return the ordered log of a pipeline run."),
			mcp.WithString("run_id", mcp.Description("Run id"), mcp.Required()),
		),
		mcpGetRunLog(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tenderd://tenders/recent",
			"Recent Tenders",
			mcp.WithResourceDescription("Last 10 tenders with status"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentTenders(deps),
	)

	return s
}

func mcpListTenders(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		tenders, err := deps.Store.ListTenders(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing tenders failed: %v", err)), nil
		}

		type tenderSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Agency    string `json:"agency,omitempty"`
			Status    string `json:"status"`
			CreatedAt string `json:"created_at"`
		}
		out := make([]tenderSummary, len(tenders))
		for i, t := range tenders {
			out[i] = tenderSummary{
				ID:        t.ID,
				Title:     t.Title,
				Agency:    t.Agency,
				Status:    t.Status,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal tenders: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetReviewPackage(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenderID, err := req.RequireString("tender_id")
		if err != nil {
			return mcpError("tender_id is required"), nil
		}

		pkg, err := buildReviewPackage(deps.Store, tenderID)
		if err != nil {
			return mcpError(fmt.Sprintf("building review package failed: %v", err)), nil
		}

		b, err := json.Marshal(pkg)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal review package: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetRunLog(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runID, err := req.RequireString("run_id")
		if err != nil {
			return mcpError("run_id is required"), nil
		}

		run, err := deps.Store.GetRun(runID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading run failed: %v", err)), nil
		}

		type logLine struct {
			Seq     int    `json:"seq"`
			At      string `json:"at"`
			Level   string `json:"level"`
			StepID  string `json:"step_id"`
			Message string `json:"message"`
		}
		out := struct {
			ID       string    `json:"id"`
			TenderID string    `json:"tender_id"`
			Pipeline string    `json:"pipeline"`
			Status   string    `json:"status"`
			Error    string    `json:"error,omitempty"`
			Logs     []logLine `json:"logs"`
		}{
			ID:       run.ID,
			TenderID: run.TenderID,
			Pipeline: run.Pipeline,
			Status:   run.Status,
			Error:    run.Error,
			Logs:     make([]logLine, len(run.Logs)),
		}
		for i, l := range run.Logs {
			out.Logs[i] = logLine{
				Seq:     l.Seq,
				At:      l.At.Format(time.RFC3339),
				Level:   l.Level,
				StepID:  l.StepID,
				Message: l.Message,
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal run: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecentTenders(deps MCPDeps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tenders, err := deps.Store.ListTenders(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenders: %w", err)
		}

		b, err := json.Marshal(tenders)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tenders: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
