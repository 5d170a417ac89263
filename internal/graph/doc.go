// Package graph is a client for the Microsoft Graph mail API, scoped to what
// the gateway needs: refresh-token exchange, listing and searching folder
// messages, sending mail and bulk deletion.
//
// The package is stateless. Every operation takes a Credential and mints a
// fresh access token for that call through the Refresher; nothing is cached
// between calls and a single Client is safe for concurrent use.
//
// Errors are typed so callers can tell them apart with errors.As:
//   - *AuthError: the token endpoint rejected the refresh token
//   - *RemoteError: a mail API call returned a non-2xx status
//   - *NotFoundError: FindFirst matched nothing
//
// Example usage:
//
//	client := graph.NewClient()
//	cred := graph.Credential{ClientID: id, RefreshToken: rt}
//
//	msgs, err := client.List(ctx, cred, graph.FolderInbox, 10)
//	if err != nil {
//	    return err
//	}
//
//	msg, err := client.FindFirst(ctx, cred, graph.FindQuery{
//	    Folder:          graph.FolderInbox,
//	    SubjectContains: "verification",
//	})
package graph
