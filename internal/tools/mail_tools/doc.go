// Package mail_tools exposes the mailbox operations as MCP tools.
//
// Read tools are always registered:
//   - mail_list_messages: newest messages of a folder
//   - mail_get_mail: first message matching subject and sender filters
//   - mail_get_code_or_link: extract a code or link from the matching message
//
// Write tools (mail_send_email, mail_delete_all) are only registered when the
// server runs with write operations enabled.
package mail_tools
