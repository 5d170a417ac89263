// Package server provides the context shared by the MCP tool handlers.
//
// ServerContext carries the collaborators a tool needs to serve a call: the
// mail service, the extractor, the mailbox credential configured for this
// process and the optional instrumentation. It is created once by the mcp
// command and handed to every tool registration function.
//
// The credential is fixed at startup. MCP clients never supply refresh
// tokens as tool arguments, so they cannot end up in an assistant's
// transcript.
package server
