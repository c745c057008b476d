package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/designdrill/designdrill/internal/interview"
	"github.com/designdrill/designdrill/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Interviews *interview.Service
	Store      *storage.Store
}

// NewMCPServer creates an MCP server exposing read-side interview tools, so
// agent clients can browse past sessions and their recommended reading.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"designdrill",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("designdrill — simulated system-design interview sessions and their recommended engineering articles."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_interviews",
			mcp.WithDescription("List all interview sessions, newest first."),
		),
		mcpListInterviews(deps),
	)

	s.AddTool(
		mcp.NewTool("get_interview",
			mcp.WithDescription("Fetch one interview with its full conversation transcript."),
			mcp.WithString("interview_id", mcp.Description("Interview identifier"), mcp.Required()),
		),
		mcpGetInterview(deps),
	)

	s.AddTool(
		mcp.NewTool("recommended_articles",
			mcp.WithDescription("List the engineering articles recommended for an interview."),
			mcp.WithString("interview_id", mcp.Description("Interview identifier"), mcp.Required()),
		),
		mcpRecommendedArticles(deps),
	)

	return s
}

func mcpListInterviews(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		interviews, err := deps.Store.ListInterviews()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list interviews: %v", err)), nil
		}

		type interviewSummary struct {
			ID        string `json:"id"`
			Question  string `json:"question"`
			IsActive  bool   `json:"is_active"`
			CreatedAt string `json:"created_at"`
		}

		summaries := make([]interviewSummary, len(interviews))
		for i, iv := range interviews {
			summaries[i] = interviewSummary{
				ID:        iv.ID,
				Question:  iv.Question,
				IsActive:  iv.IsActive,
				CreatedAt: iv.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal interviews: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetInterview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("interview_id")
		if err != nil {
			return mcpError("interview_id is required"), nil
		}

		view, err := deps.Interviews.Get(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get interview: %v", err)), nil
		}

		b, err := json.Marshal(view)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal interview: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecommendedArticles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("interview_id")
		if err != nil {
			return mcpError("interview_id is required"), nil
		}

		links, err := deps.Store.ListInterviewArticles(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list articles: %v", err)), nil
		}

		b, err := json.Marshal(links)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal articles: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
