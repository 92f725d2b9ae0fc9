package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/prdloop/internal/prd"
)

// registerTools registers the requirement tools with the MCP server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("requirement-info",
			mcp.WithDescription("Get the title, status, and acceptance criteria of a requirement in the current feature"),
			mcp.WithString("id", mcp.Required(),
				mcp.Description("Requirement ID, e.g. REQ-01"),
			),
		),
		s.handleRequirementInfo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("requirement-block",
			mcp.WithDescription("Mark a requirement blocked with a reason. Use this when the requirement cannot proceed without outside input; it will no longer be selected for iteration"),
			mcp.WithString("id", mcp.Required(),
				mcp.Description("Requirement ID to block"),
			),
			mcp.WithString("reason", mcp.Required(),
				mcp.Description("Why the requirement cannot proceed"),
			),
		),
		s.handleRequirementBlock,
	)
}

// handleRequirementInfo returns the full details of one requirement.
// State is re-read from disk on every call; disk is the sole truth.
func (s *Server) handleRequirementInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing 'id' parameter"), nil
	}

	doc, err := s.store.Load(s.slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load PRD: %v", err)), nil
	}

	req := doc.Requirement(id)
	if req == nil {
		return mcp.NewToolResultError(fmt.Sprintf("requirement not found: %s", id)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\nStatus: %s\n", req.ID, req.Title, req.Status)
	if req.BlockedReason != "" {
		fmt.Fprintf(&sb, "Blocked reason: %s\n", req.BlockedReason)
	}
	sb.WriteString("Acceptance criteria:\n")
	for _, ac := range req.AcceptanceCriteria {
		fmt.Fprintf(&sb, "- %s\n", ac)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleRequirementBlock marks a requirement blocked and persists the PRD.
func (s *Server) handleRequirementBlock(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing 'id' parameter"), nil
	}
	reason, err := request.RequireString("reason")
	if err != nil || strings.TrimSpace(reason) == "" {
		return mcp.NewToolResultError("a non-empty 'reason' is required to block a requirement"), nil
	}

	doc, err := s.store.Load(s.slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load PRD: %v", err)), nil
	}

	if err := doc.MarkBlocked(id, reason); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Persist(doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to persist PRD: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Requirement %s marked %s. It will not be selected again until unblocked externally.",
		id, prd.StatusBlocked)), nil
}
