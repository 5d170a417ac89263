package instrumentation

import (
	"sort"
	"strings"
)

// Cardinality management helpers for metrics and audit logs.
// Recipient lists and addresses are reduced to their domains before
// being attached to anything aggregated.

// ExtractDomain extracts the domain part from an email address.
//
// Example:
//
//	ExtractDomain("jane@example.com")  // "example.com"
//	ExtractDomain("invalid")           // "unknown"
//	ExtractDomain("")                  // "unknown"
func ExtractDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}

// RecipientDomains returns the sorted, de-duplicated domains of recipients.
func RecipientDomains(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	domains := make([]string, 0, len(recipients))
	for _, r := range recipients {
		d := ExtractDomain(strings.TrimSpace(r))
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Operation types for provider API metrics.
const (
	OperationRefresh = "refresh"
	OperationList    = "list"
	OperationSend    = "send"
	OperationDelete  = "delete"
)
