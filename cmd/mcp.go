package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/mailgateway/internal/config"
	"github.com/teemow/mailgateway/internal/instrumentation"
	"github.com/teemow/mailgateway/internal/logging"
	"github.com/teemow/mailgateway/internal/server"
	"github.com/teemow/mailgateway/internal/tools/mail_tools"
)

func newMCPCmd() *cobra.Command {
	var yolo bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the mailbox as MCP tools over stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout that exposes
the configured mailbox to AI assistants.

The mailbox credential comes from --client-id and --refresh-token (or
MAILGATEWAY_CLIENT_ID and MAILGATEWAY_REFRESH_TOKEN); it is never accepted as
a tool argument.

By default only read tools are registered. Use --yolo to enable sending and
bulk deletion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runMCP(cfg, yolo)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (sending mail, bulk deletion). Default is read-only mode.")
	return cmd
}

func runMCP(cfg config.Config, yolo bool) error {
	logger := newLogger(cfg)

	cred, err := mailboxCredential(cfg)
	if err != nil {
		return err
	}

	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := newInstrumentation(shutdownCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	mail, extractor := newMailStack(cfg, provider, logger)

	serverContext, err := server.NewServerContext(shutdownCtx, mail, extractor, cred,
		server.WithMetrics(provider.Metrics()),
		server.WithAuditLogger(instrumentation.NewAuditLogger(logger, cfg.Telemetry.Audit())),
		server.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("Error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv := mcpserver.NewMCPServer("mailgateway", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo
	if readOnly {
		logger.Info("Starting MCP server in READ-ONLY mode (use --yolo to enable write operations)")
	} else {
		logger.Warn("Starting MCP server with WRITE operations enabled (--yolo flag is set)")
	}

	if err := mail_tools.RegisterMailTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	return runStdioServer(shutdownCtx, mcpSrv)
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
	case <-ctx.Done():
	}
	return nil
}
