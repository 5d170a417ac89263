package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGraph serves the token endpoint and the subset of the mail API the
// client uses.
type fakeGraph struct {
	t *testing.T

	mu          sync.Mutex
	folders     map[string][]Message
	failDelete  map[string]int
	tokenStatus int
	tokenBody   string
	listStatus  int
	listBody    string
	sendStatus  int
	deleteDelay time.Duration

	tokenCalls int
	tokenForms []url.Values
	listCalls  int
	lastQuery  url.Values
	lastHeader http.Header
	sent       []sendMailRequest
	attempted  []string
	deleted    []string

	deletesInFlight atomic.Int32
	peakDeletes     atomic.Int32
}

func newFakeGraph(t *testing.T) (*fakeGraph, *httptest.Server) {
	t.Helper()
	fg := &fakeGraph{
		t:          t,
		folders:    map[string][]Message{},
		failDelete: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", fg.handleToken)
	mux.HandleFunc("GET /v1.0/me/mailFolders/{folder}/messages", fg.handleList)
	mux.HandleFunc("POST /v1.0/me/sendMail", fg.handleSend)
	mux.HandleFunc("DELETE /v1.0/me/messages/{id}", fg.handleDelete)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fg, srv
}

func (fg *fakeGraph) handleToken(w http.ResponseWriter, r *http.Request) {
	require.NoError(fg.t, r.ParseForm())

	fg.mu.Lock()
	fg.tokenCalls++
	n := fg.tokenCalls
	fg.tokenForms = append(fg.tokenForms, r.PostForm)
	status, body := fg.tokenStatus, fg.tokenBody
	fg.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	if body == "" {
		body = fmt.Sprintf(`{"access_token":"at-%d","token_type":"Bearer","expires_in":3600}`, n)
	}
	_, _ = io.WriteString(w, body)
}

func (fg *fakeGraph) authorized(w http.ResponseWriter, r *http.Request) bool {
	if len(r.Header.Get("Authorization")) <= len("Bearer at-") {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (fg *fakeGraph) handleList(w http.ResponseWriter, r *http.Request) {
	if !fg.authorized(w, r) {
		return
	}
	fg.mu.Lock()
	fg.listCalls++
	fg.lastQuery = r.URL.Query()
	fg.lastHeader = r.Header.Clone()
	msgs := fg.folders[r.PathValue("folder")]
	status, body := fg.listStatus, fg.listBody
	fg.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}
	_ = json.NewEncoder(w).Encode(messageList{Value: msgs})
}

func (fg *fakeGraph) handleSend(w http.ResponseWriter, r *http.Request) {
	if !fg.authorized(w, r) {
		return
	}
	var req sendMailRequest
	require.NoError(fg.t, json.NewDecoder(r.Body).Decode(&req))

	fg.mu.Lock()
	fg.sent = append(fg.sent, req)
	status := fg.sendStatus
	fg.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"code":"ErrorInvalidRecipients","message":"At least one recipient is not valid."}}`)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (fg *fakeGraph) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !fg.authorized(w, r) {
		return
	}
	id := r.PathValue("id")

	n := fg.deletesInFlight.Add(1)
	defer fg.deletesInFlight.Add(-1)
	for {
		peak := fg.peakDeletes.Load()
		if n <= peak || fg.peakDeletes.CompareAndSwap(peak, n) {
			break
		}
	}
	fg.mu.Lock()
	delay := fg.deleteDelay
	fg.mu.Unlock()
	time.Sleep(delay)

	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.attempted = append(fg.attempted, id)
	if status, ok := fg.failDelete[id]; ok {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"code":"ErrorInternalServerError","message":"delete failed"}}`)
		return
	}
	fg.deleted = append(fg.deleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	refresher := NewRefresher(
		WithTokenURL(srv.URL+"/token"),
		WithRefresherHTTPClient(srv.Client()),
		WithRefresherLogger(logger),
	)
	base := []Option{
		WithBaseURL(srv.URL + "/v1.0"),
		WithHTTPClient(srv.Client()),
		WithTokenSource(refresher),
		WithLogger(logger),
	}
	return NewClient(append(base, opts...)...)
}

var testCred = Credential{ClientID: "client-123", RefreshToken: "rt-secret"}

func msg(id, subject, from string, received time.Time, body string) Message {
	return Message{
		ID:               id,
		Subject:          subject,
		ReceivedDateTime: received,
		From:             &Recipient{EmailAddress: EmailAddress{Address: from}},
		Body:             &ItemBody{ContentType: "text", Content: body},
	}
}
