package mail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailgateway/internal/extract"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/server"
	"github.com/teemow/mailgateway/internal/tools/common"
)

// RegisterReadTools registers the tools that never modify the mailbox.
func RegisterReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("mail_list_messages",
		mcp.WithDescription("List the newest messages of a mail folder, newest first"),
		mcp.WithReadOnlyHintAnnotation(true),
		folderArg,
		mcp.WithNumber("top",
			mcp.Description("Maximum number of messages to return (default: 10)"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("mail_list_messages", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListMessages(ctx, request, sc)
		}))

	getMailTool := mcp.NewTool("mail_get_mail",
		mcp.WithDescription("Get the newest message matching the subject and sender filters"),
		mcp.WithReadOnlyHintAnnotation(true),
		folderArg,
		subjectArg,
		senderArg,
		mcp.WithNumber("top",
			mcp.Description("Number of newest messages to search (default: 1)"),
		),
	)
	s.AddTool(getMailTool, common.InstrumentedToolHandler("mail_get_mail", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMail(ctx, request, sc)
		}))

	codeTool := mcp.NewTool("mail_get_code_or_link",
		mcp.WithDescription("Extract a verification code or link from the newest matching message. "+
			"Returns false when nothing is found."),
		mcp.WithReadOnlyHintAnnotation(true),
		folderArg,
		subjectArg,
		senderArg,
		mcp.WithNumber("top",
			mcp.Description("Number of newest messages to search (default: 1)"),
		),
		mcp.WithString("pattern",
			mcp.Description("Regular expression; the first match is returned (e.g. '\\d{6}')"),
		),
		mcp.WithString("between",
			mcp.Description("Delimiter pair 'start,end'; every substring between them is returned"),
		),
	)
	s.AddTool(codeTool, common.InstrumentedToolHandler("mail_get_code_or_link", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCodeOrLink(ctx, request, sc)
		}))

	return nil
}

func handleListMessages(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	folder := folderFromRequest(request)
	top := request.GetInt("top", graph.DefaultListLimit)

	msgs, err := sc.Mail().List(ctx, sc.Credential(), folder, top)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list messages: %v", err)), nil
	}
	if msgs == nil {
		msgs = []graph.Message{}
	}
	return mcp.NewToolResultJSON(msgs)
}

func handleGetMail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	msg, err := sc.Mail().FindFirst(ctx, sc.Credential(), findQueryFromRequest(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get mail: %v", err)), nil
	}
	return mcp.NewToolResultJSON(msg.Mail())
}

func handleGetCodeOrLink(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	q := extract.Query{
		Pattern: request.GetString("pattern", ""),
		Between: request.GetString("between", ""),
	}
	if q.Pattern == "" && q.Between == "" {
		return mcp.NewToolResultError("either 'pattern' or 'between' is required"), nil
	}

	msg, err := sc.Mail().FindFirst(ctx, sc.Credential(), findQueryFromRequest(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get mail: %v", err)), nil
	}

	result := sc.Extractor().Extract(ctx, msg.BodyContent(), q)
	return mcp.NewToolResultJSON(result)
}
