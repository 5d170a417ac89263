// Package logging provides structured logging utilities for mailgateway.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and makes sure credentials never reach the log stream:
//
//	logger := logging.WithOperation(slog.Default(), "graph.list")
//	logger.Info("listing messages",
//	    logging.Folder("inbox"),
//	    logging.ClientHash(cred.ClientID))
//
// Refresh and access tokens are only ever logged through SanitizeToken,
// and client IDs through ClientHash.
package logging
