package graph

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestClient_List(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.folders[FolderInbox] = []Message{
		msg("a", "oldest", "a@example.com", t0.Add(-2*time.Hour), "a"),
		msg("c", "newest", "c@example.com", t0, "c"),
		msg("b", "middle", "b@example.com", t0.Add(-time.Hour), "b"),
	}
	client := newTestClient(srv)

	msgs, err := client.List(context.Background(), testCred, FolderInbox, 2)
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, "newest", msgs[0].Subject)
	assert.Equal(t, "middle", msgs[1].Subject)
	assert.Equal(t, "c@example.com", msgs[0].SenderAddress())

	assert.Equal(t, "2", fg.lastQuery.Get("$top"))
	assert.Equal(t, "subject,receivedDateTime,from,body", fg.lastQuery.Get("$select"))
	assert.Equal(t, "receivedDateTime DESC", fg.lastQuery.Get("$orderby"))
	assert.Equal(t, `outlook.body-content-type="text"`, fg.lastHeader.Get("Prefer"))
	assert.Equal(t, "Bearer at-1", fg.lastHeader.Get("Authorization"))
}

func TestClient_List_DefaultLimit(t *testing.T) {
	fg, srv := newFakeGraph(t)
	client := newTestClient(srv)

	msgs, err := client.List(context.Background(), testCred, FolderInbox, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, "10", fg.lastQuery.Get("$top"))
}

func TestClient_ListJunk(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.folders[FolderJunk] = []Message{msg("j", "spam", "s@spam.test", t0, "buy")}
	client := newTestClient(srv)

	msgs, err := client.ListJunk(context.Background(), testCred, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "spam", msgs[0].Subject)
}

func TestClient_List_RemoteError(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.listStatus = http.StatusForbidden
	fg.listBody = `{"error":{"code":"ErrorAccessDenied","message":"Access is denied."}}`
	client := newTestClient(srv)

	_, err := client.List(context.Background(), testCred, FolderInbox, 5)
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusForbidden, remoteErr.StatusCode)
	assert.Equal(t, "ErrorAccessDenied", remoteErr.Code)
	assert.Contains(t, err.Error(), "Access is denied.")
}

func TestClient_List_AuthErrorSkipsAPI(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.tokenStatus = http.StatusUnauthorized
	fg.tokenBody = `{"error":"invalid_client"}`
	client := newTestClient(srv)

	_, err := client.List(context.Background(), testCred, FolderInbox, 5)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, fg.listCalls)
}

func TestClient_FreshTokenPerCall(t *testing.T) {
	fg, srv := newFakeGraph(t)
	client := newTestClient(srv)

	for i := 0; i < 3; i++ {
		_, err := client.List(context.Background(), testCred, FolderInbox, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, fg.tokenCalls)
	assert.Equal(t, "Bearer at-3", fg.lastHeader.Get("Authorization"))
}

func TestClient_FindFirst(t *testing.T) {
	inbox := []Message{
		msg("1", "Your verification code", "noreply@service.test", t0, "code 123456"),
		msg("2", "Weekly digest", "news@service.test", t0.Add(-time.Minute), "digest"),
		msg("3", "Verification code again", "other@service.test", t0.Add(-2*time.Minute), "code 654321"),
	}

	tests := []struct {
		name        string
		query       FindQuery
		wantID      string
		wantErrText string
	}{
		{
			name:   "no filters returns newest",
			query:  FindQuery{Limit: 3},
			wantID: "1",
		},
		{
			name:   "subject filter",
			query:  FindQuery{Limit: 3, SubjectContains: "digest"},
			wantID: "2",
		},
		{
			name:   "sender filter",
			query:  FindQuery{Limit: 3, Sender: "other@service.test"},
			wantID: "3",
		},
		{
			name:   "both filters",
			query:  FindQuery{Limit: 3, SubjectContains: "code", Sender: "other@service.test"},
			wantID: "3",
		},
		{
			name:        "subject is case sensitive",
			query:       FindQuery{Limit: 3, SubjectContains: "VERIFICATION"},
			wantErrText: "no matching message found, subject contains: VERIFICATION",
		},
		{
			name:        "both filters unmet",
			query:       FindQuery{Limit: 3, SubjectContains: "digest", Sender: "noreply@service.test"},
			wantErrText: "no matching message found, subject contains: digest, sender: noreply@service.test",
		},
		{
			name:        "default limit only scans newest",
			query:       FindQuery{Sender: "other@service.test"},
			wantErrText: "no matching message found, sender: other@service.test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, srv := newFakeGraph(t)
			fg.folders[FolderInbox] = inbox
			client := newTestClient(srv)

			got, err := client.FindFirst(context.Background(), testCred, tt.query)
			if tt.wantErrText != "" {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.EqualError(t, err, tt.wantErrText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestMessage_Mail(t *testing.T) {
	m := msg("1", "Hello", "jane@example.com", t0, "body text")
	assert.Equal(t, Mail{
		Subject: "Hello",
		Sender:  "jane@example.com",
		Time:    t0,
		Content: "body text",
	}, m.Mail())

	empty := Message{Subject: "draft"}
	assert.Equal(t, "", empty.SenderAddress())
	assert.Equal(t, "", empty.BodyContent())
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name            string
		isHTML          bool
		wantContentType string
	}{
		{name: "html", isHTML: true, wantContentType: "HTML"},
		{name: "plain text", isHTML: false, wantContentType: "Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fg, srv := newFakeGraph(t)
			client := newTestClient(srv)

			ok, err := client.Send(context.Background(), testCred, OutgoingMessage{
				To:      []string{"a@example.com", "b@example.org"},
				Subject: "Hi",
				Body:    "<p>hello</p>",
				IsHTML:  tt.isHTML,
			})
			require.NoError(t, err)
			assert.True(t, ok)

			require.Len(t, fg.sent, 1)
			sent := fg.sent[0].Message
			assert.Equal(t, "Hi", sent.Subject)
			assert.Equal(t, tt.wantContentType, sent.Body.ContentType)
			assert.Equal(t, "<p>hello</p>", sent.Body.Content)
			require.Len(t, sent.ToRecipients, 2)
			assert.Equal(t, "a@example.com", sent.ToRecipients[0].EmailAddress.Address)
			assert.Equal(t, "b@example.org", sent.ToRecipients[1].EmailAddress.Address)
		})
	}
}

func TestClient_Send_Rejected(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.sendStatus = http.StatusBadRequest
	client := newTestClient(srv)

	ok, err := client.Send(context.Background(), testCred, OutgoingMessage{
		To:      []string{"not-an-address"},
		Subject: "Hi",
		Body:    "x",
	})
	assert.False(t, ok)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadRequest, remoteErr.StatusCode)
	assert.Equal(t, "ErrorInvalidRecipients", remoteErr.Code)
}

func fiveMessages() []Message {
	msgs := make([]Message, 0, 5)
	for i := 1; i <= 5; i++ {
		msgs = append(msgs, Message{ID: fmt.Sprintf("m%d", i)})
	}
	return msgs
}

func TestClient_DeleteAll(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.folders[FolderJunk] = fiveMessages()
	client := newTestClient(srv)

	err := client.DeleteAll(context.Background(), testCred, FolderJunk)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"m1", "m2", "m3", "m4", "m5"}, fg.deleted)
	assert.Equal(t, "1000", fg.lastQuery.Get("$top"))
}

func TestClient_DeleteAll_StopsOnFirstFailure(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.folders[FolderInbox] = fiveMessages()
	fg.failDelete["m3"] = http.StatusInternalServerError
	client := newTestClient(srv, WithDeleteConcurrency(1))

	err := client.DeleteAll(context.Background(), testCred, FolderInbox)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)

	// Earlier deletions are not rolled back; later ones never start.
	assert.Equal(t, []string{"m1", "m2"}, fg.deleted)
	assert.Equal(t, []string{"m1", "m2", "m3"}, fg.attempted)
}

func TestClient_DeleteAll_FailureWithConcurrency(t *testing.T) {
	fg, srv := newFakeGraph(t)
	fg.folders[FolderInbox] = fiveMessages()
	fg.failDelete["m3"] = http.StatusInternalServerError
	client := newTestClient(srv, WithDeleteConcurrency(4))

	err := client.DeleteAll(context.Background(), testCred, FolderInbox)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, fg.attempted, "m3")
	assert.NotContains(t, fg.deleted, "m3")
	assert.LessOrEqual(t, len(fg.attempted), 5)
}

func TestClient_DeleteAll_BoundedConcurrency(t *testing.T) {
	fg, srv := newFakeGraph(t)
	msgs := make([]Message, 0, 24)
	for i := range 24 {
		msgs = append(msgs, Message{ID: fmt.Sprintf("m%d", i)})
	}
	fg.folders[FolderJunk] = msgs
	fg.deleteDelay = 20 * time.Millisecond
	client := newTestClient(srv, WithDeleteConcurrency(4))

	require.NoError(t, client.DeleteAll(context.Background(), testCred, FolderJunk))

	assert.Len(t, fg.deleted, 24)
	peak := fg.peakDeletes.Load()
	assert.LessOrEqual(t, peak, int32(4), "in-flight deletes exceeded the pool size")
	assert.Greater(t, peak, int32(1), "deletes never overlapped")
}

func TestClient_DeleteAll_EmptyFolder(t *testing.T) {
	fg, srv := newFakeGraph(t)
	client := newTestClient(srv)

	require.NoError(t, client.DeleteAll(context.Background(), testCred, FolderInbox))
	assert.Empty(t, fg.attempted)
}

func TestErrors(t *testing.T) {
	cause := fmt.Errorf("boom")

	authErr := &AuthError{Err: cause}
	assert.ErrorIs(t, authErr, cause)
	assert.Contains(t, authErr.Error(), "refresh access token")

	remoteErr := &RemoteError{Operation: "list messages", StatusCode: 404, Code: "ErrorItemNotFound", Message: "gone"}
	assert.Equal(t, "list messages failed: status 404 (ErrorItemNotFound): gone", remoteErr.Error())

	transportErr := &RemoteError{Operation: "send mail", Err: cause}
	assert.Equal(t, "send mail failed: boom", transportErr.Error())
	assert.ErrorIs(t, transportErr, cause)

	assert.Equal(t, "no matching message found", (&NotFoundError{}).Error())
}
