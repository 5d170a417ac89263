package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/mailgateway/internal/config"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/logging"
)

// rootCmd represents the base command for the mailgateway application
var rootCmd = &cobra.Command{
	Use:   "mailgateway",
	Short: "HTTP gateway for Microsoft Graph mail",
	Long: `mailgateway fronts the Microsoft Graph mail API with a small HTTP service
protected by a shared API key. Callers pass a mailbox's client ID and refresh
token; the gateway exchanges them for an access token on every call and lists,
searches, sends or deletes mail on their behalf.

It can run as:
  - The HTTP gateway (default)
  - A client of a running gateway
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailgateway version %s\n" .Version}}`)

	// If no subcommand is provided, run the gateway by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newClientCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig resolves the configuration for cmd, honouring --config and
// --env-file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")

	cfg, err := config.Load(config.Options{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      flags,
	})
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// free for command output and the MCP stdio transport.
func newLogger(cfg config.Config) *slog.Logger {
	logger := logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.Debug)
	slog.SetDefault(logger)
	return logger
}

// mailboxCredential returns the configured mailbox credential.
func mailboxCredential(cfg config.Config) (graph.Credential, error) {
	if cfg.ClientID == "" || cfg.RefreshToken == "" {
		return graph.Credential{}, fmt.Errorf("a mailbox credential is required: set --client-id and --refresh-token " +
			"(or MAILGATEWAY_CLIENT_ID and MAILGATEWAY_REFRESH_TOKEN)")
	}
	return graph.Credential{ClientID: cfg.ClientID, RefreshToken: cfg.RefreshToken}, nil
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
