// Package gateway is the HTTP surface of mailgateway.
//
// Every mail route sits behind a shared-secret check on the Api-Key
// header; the root route and the Kubernetes probes do not. Requests carry
// the mailbox credential (client_id and refresh_token) themselves, so the
// server keeps no per-mailbox state.
//
// Routes:
//
//	GET    /                             {"status":"healthy"}
//	POST   /send_email                   {"success":true}
//	GET    /get_messages                 [message, ...]
//	GET    /get_mail                     {"subject","sender","time","content"}
//	GET    /get_code_or_link             "code", ["a","b"] or false
//	DELETE /delete_all_inbox_emails      {"success":true}
//	DELETE /delete_all_junkemail_emails  {"success":true}
//	GET    /healthz, /readyz             probe status
//
// A missing or wrong key yields 401 {"error":"Unauthorized"}. Malformed
// input yields 400 and any failure from the mail provider yields 500, both
// as {"error": message}.
package gateway
