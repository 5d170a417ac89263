// Package cmd implements the command-line interface for mailgateway.
//
// This package provides the following commands:
//   - serve: Run the HTTP gateway in front of the mail API
//   - client: Call a running gateway (send, messages, mail, code, delete, health)
//   - cleanup: Empty the inbox and junk folders through the gateway
//   - mcp: Serve the mail operations as MCP tools over stdio
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
//
// Every command reads the same configuration: flags, MAILGATEWAY_* environment
// variables, an optional YAML file (--config) and a .env file.
package cmd
