package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/internetsb/maizone/internal/engage"
)

// MCPDeps holds dependencies for the MCP server. The tools mirror the HTTP
// control API so an assistant can drive the bot directly.
type MCPDeps struct {
	Deps AppDeps
}

// NewMCPServer creates an MCP server with all maizone tools registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"maizone",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("maizone — autonomous QQ-zone engagement bot: post feeds, browse and interact, keep a diary."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("send_feed",
			mcp.WithDescription("Generate and publish a feed. An empty topic picks one from the configured pool."),
			mcp.WithString("topic", mcp.Description("Topic to write about")),
		),
		mcpSendFeed(deps),
	)

	s.AddTool(
		mcp.NewTool("browse_feeds",
			mcp.WithDescription("Run one browse pass: reply to comments on own feeds, comment/like unseen feeds."),
		),
		mcpBrowseFeeds(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_diary",
			mcp.WithDescription("Generate the diary entry for a date (default today)."),
			mcp.WithString("date", mcp.Description("Date in YYYY-MM-DD format")),
		),
		mcpGenerateDiary(deps),
	)

	s.AddTool(
		mcp.NewTool("zone_status",
			mcp.WithDescription("Report cooldown and dedup-store state."),
		),
		mcpZoneStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"maizone://persona",
			"Bot Persona",
			mcp.WithResourceDescription("Current bot persona as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourcePersona(deps),
	)

	return s
}

func mcpSendFeed(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic := req.GetString("topic", "")

		post, err := deps.Deps.Poster.PublishOnce(ctx, topic)
		if err != nil {
			return mcpError(fmt.Sprintf("publishing failed: %v", err)), nil
		}
		deps.Deps.Cooldowns.RecordSuccess(engage.ActionPost)

		return mcpText(fmt.Sprintf("Published feed %s:\n%s", post.ID, post.Content)), nil
	}
}

func mcpBrowseFeeds(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := deps.Deps.Browser.ReconcileOnce(ctx); err != nil {
			return mcpError(fmt.Sprintf("browse failed: %v", err)), nil
		}
		deps.Deps.Cooldowns.RecordSuccess(engage.ActionBrowse)

		return mcpText(fmt.Sprintf("Browse pass complete. Handled feeds: %d, replied comments on %d own feeds.",
			deps.Deps.Handled.Len(), deps.Deps.Replied.Len())), nil
	}
}

func mcpGenerateDiary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date := req.GetString("date", "")
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return mcpError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", date)), nil
		}

		if err := deps.Deps.Diary.GenerateAndPublish(ctx, date); err != nil {
			return mcpError(fmt.Sprintf("diary generation failed: %v", err)), nil
		}
		entry, err := deps.Deps.Diary.Entry(date)
		if err != nil {
			return mcpError(fmt.Sprintf("reading diary back: %v", err)), nil
		}

		return mcpText(entry.Content), nil
	}
}

func mcpZoneStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := statusResponse{
			Running:                 true,
			PostCooldownRemaining:   deps.Deps.Cooldowns.Remaining(engage.ActionPost).Round(time.Second).String(),
			BrowseCooldownRemaining: deps.Deps.Cooldowns.Remaining(engage.ActionBrowse).Round(time.Second).String(),
			HandledFeeds:            deps.Deps.Handled.Len(),
			RepliedFeeds:            deps.Deps.Replied.Len(),
		}
		b, err := json.Marshal(status)
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourcePersona(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Deps.Persona.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to get persona: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal persona: %w", err)
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
