package mail_tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/server"
)

// RegisterMailTools registers all mail tools with the MCP server
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterReadTools(s, sc); err != nil {
		return fmt.Errorf("failed to register read tools: %w", err)
	}

	if !readOnly {
		if err := RegisterWriteTools(s, sc); err != nil {
			return fmt.Errorf("failed to register write tools: %w", err)
		}
	}

	return nil
}

// folderFromRequest returns the folder argument, defaulting to the inbox.
func folderFromRequest(request mcp.CallToolRequest) string {
	if folder := strings.TrimSpace(request.GetString("folder", "")); folder != "" {
		return folder
	}
	return graph.FolderInbox
}

// recipientsFromRequest accepts either an array of addresses or a single
// comma-separated string.
func recipientsFromRequest(request mcp.CallToolRequest) []string {
	if list := request.GetStringSlice("to", nil); list != nil {
		return trimAll(list)
	}
	return splitEmailAddresses(request.GetString("to", ""))
}

// splitEmailAddresses splits a comma-separated list of email addresses
func splitEmailAddresses(addresses string) []string {
	if addresses == "" {
		return nil
	}
	return trimAll(strings.Split(addresses, ","))
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func findQueryFromRequest(request mcp.CallToolRequest) graph.FindQuery {
	return graph.FindQuery{
		Folder:          folderFromRequest(request),
		Limit:           request.GetInt("top", graph.DefaultFindLimit),
		SubjectContains: request.GetString("subject_pattern", ""),
		Sender:          request.GetString("sender", ""),
	}
}

// Shared argument definitions.
var (
	folderArg = mcp.WithString("folder",
		mcp.Description("Mail folder: 'inbox' (default) or 'junkemail'"),
	)
	subjectArg = mcp.WithString("subject_pattern",
		mcp.Description("Only match messages whose subject contains this text"),
	)
	senderArg = mcp.WithString("sender",
		mcp.Description("Only match messages from this exact sender address"),
	)
)
