package mail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/server"
	"github.com/teemow/mailgateway/internal/tools/common"
)

// RegisterWriteTools registers the tools that send or delete mail.
func RegisterWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	sendTool := mcp.NewTool("mail_send_email",
		mcp.WithDescription("Send an email from the configured mailbox"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Email body content"),
		),
		mcp.WithBoolean("is_html",
			mcp.Description("Whether the content is HTML (default: false for plain text)"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandler("mail_send_email", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendEmail(ctx, request, sc)
		}))

	deleteTool := mcp.NewTool("mail_delete_all",
		mcp.WithDescription("Permanently delete up to 1000 messages from a mail folder"),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("folder",
			mcp.Required(),
			mcp.Enum(graph.FolderInbox, graph.FolderJunk),
			mcp.Description("Folder to empty: 'inbox' or 'junkemail'"),
		),
	)
	s.AddTool(deleteTool, common.InstrumentedToolHandler("mail_delete_all", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteAll(ctx, request, sc)
		}))

	return nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	to := recipientsFromRequest(request)
	if len(to) == 0 {
		return mcp.NewToolResultError("'to' field is required"), nil
	}

	subject, err := request.RequireString("subject")
	if err != nil || subject == "" {
		return mcp.NewToolResultError("'subject' field is required"), nil
	}

	content, err := request.RequireString("content")
	if err != nil || content == "" {
		return mcp.NewToolResultError("'content' field is required"), nil
	}

	ok, err := sc.Mail().Send(ctx, sc.Credential(), graph.OutgoingMessage{
		To:      to,
		Subject: subject,
		Body:    content,
		IsHTML:  request.GetBool("is_html", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError("Email was not accepted"), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email sent to %d recipient(s)", len(to))), nil
}

func handleDeleteAll(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	folder, err := request.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError("'folder' field is required"), nil
	}
	if folder != graph.FolderInbox && folder != graph.FolderJunk {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported folder %q: must be %q or %q",
			folder, graph.FolderInbox, graph.FolderJunk)), nil
	}

	if err := sc.Mail().DeleteAll(ctx, sc.Credential(), folder); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete %s messages: %v", folder, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted all messages in %s", folder)), nil
}
