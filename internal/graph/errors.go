package graph

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError reports a failed refresh-token exchange.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to refresh access token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RemoteError reports a mail API call that the provider rejected or that
// could not be completed.
type RemoteError struct {
	Operation  string
	StatusCode int    // 0 when no response was received
	Code       string // provider error code, if any
	Message    string // provider error message, if any
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NotFoundError reports that no message satisfied a FindQuery. It names
// the filters that were in effect.
type NotFoundError struct {
	SubjectContains string
	Sender          string
}

func (e *NotFoundError) Error() string {
	msg := "no matching message found"
	if e.SubjectContains != "" {
		msg += fmt.Sprintf(", subject contains: %s", e.SubjectContains)
	}
	if e.Sender != "" {
		msg += fmt.Sprintf(", sender: %s", e.Sender)
	}
	return msg
}

var errMissingAccessToken = errors.New("token response missing access_token")
