// Package common holds helpers shared by the MCP tool packages.
//
// InstrumentedToolHandler wraps a tool handler so every invocation is traced,
// counted in mcp_tool_invocations_total and logged at debug level.
package common
