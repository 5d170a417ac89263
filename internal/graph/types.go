package graph

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Provider endpoints and defaults.
const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	FolderInbox = "inbox"
	FolderJunk  = "junkemail"

	// DefaultListLimit is the page size used when a caller gives no limit.
	DefaultListLimit = 10

	// DefaultFindLimit is how many of the newest messages FindFirst scans.
	DefaultFindLimit = 1

	// DeleteListLimit caps how many messages one DeleteAll call removes.
	DeleteListLimit = 1000

	// DefaultDeleteConcurrency bounds the DeleteAll worker pool.
	DefaultDeleteConcurrency = 8
)

// defaultHTTPClient is the instrumented client used for provider calls
// when none is supplied.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: otelhttp.NewTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   DefaultDeleteConcurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}),
}

// Credential identifies a mailbox: an OAuth application (public client) ID
// and a long-lived refresh token issued to it.
type Credential struct {
	ClientID     string
	RefreshToken string
}

// EmailAddress is a Graph emailAddress resource.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Recipient is a Graph recipient resource.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is a Graph itemBody resource.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is the read-only projection of a Graph message.
type Message struct {
	ID               string     `json:"id,omitempty"`
	Subject          string     `json:"subject"`
	ReceivedDateTime time.Time  `json:"receivedDateTime"`
	From             *Recipient `json:"from,omitempty"`
	Body             *ItemBody  `json:"body,omitempty"`
}

// SenderAddress returns the sender's address, or "" when the provider
// omitted it (drafts, some system messages).
func (m *Message) SenderAddress() string {
	if m.From == nil {
		return ""
	}
	return m.From.EmailAddress.Address
}

// BodyContent returns the message body text.
func (m *Message) BodyContent() string {
	if m.Body == nil {
		return ""
	}
	return m.Body.Content
}

// Mail is the flattened view of a message returned by search.
type Mail struct {
	Subject string    `json:"subject"`
	Sender  string    `json:"sender"`
	Time    time.Time `json:"time"`
	Content string    `json:"content"`
}

// Mail flattens m.
func (m *Message) Mail() Mail {
	return Mail{
		Subject: m.Subject,
		Sender:  m.SenderAddress(),
		Time:    m.ReceivedDateTime,
		Content: m.BodyContent(),
	}
}

// FindQuery selects the first matching message among the newest Limit
// messages of Folder. Empty filters match everything.
type FindQuery struct {
	Folder          string
	Limit           int
	SubjectContains string
	Sender          string
}

// OutgoingMessage is a message to send.
type OutgoingMessage struct {
	To      []string
	Subject string
	Body    string
	IsHTML  bool
}

// Wire shapes for Graph requests and responses.

type messageList struct {
	Value []Message `json:"value"`
}

type sendMailRequest struct {
	Message sendMailMessage `json:"message"`
}

type sendMailMessage struct {
	Subject      string      `json:"subject"`
	Body         ItemBody    `json:"body"`
	ToRecipients []Recipient `json:"toRecipients"`
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
