package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/teemow/mailgateway/internal/extract"
	"github.com/teemow/mailgateway/internal/graph"
	"github.com/teemow/mailgateway/internal/logging"
)

// maxSendEmailBody caps the /send_email request body.
const maxSendEmailBody = 1 << 20

// sendEmailRequest is the /send_email body.
type sendEmailRequest struct {
	ClientID     string   `json:"client_id"`
	RefreshToken string   `json:"refresh_token"`
	ToRecipients []string `json:"to_recipients"`
	Subject      string   `json:"subject"`
	Content      string   `json:"content"`
	IsHTML       bool     `json:"is_html"`
}

// badRequestError marks input the gateway could not parse.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSendEmailBody)

	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	cred := graph.Credential{ClientID: req.ClientID, RefreshToken: req.RefreshToken}
	ok, err := s.mail.Send(r.Context(), cred, graph.OutgoingMessage{
		To:      req.ToRecipients,
		Subject: req.Subject,
		Body:    req.Content,
		IsHTML:  req.IsHTML,
	})
	if err != nil {
		s.fail(w, r, "send email", err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: ok})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	top, err := intParam(q.Get("top"), graph.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := s.mail.List(r.Context(), credential(r), folderParam(r), top)
	if err != nil {
		s.fail(w, r, "get messages", err)
		return
	}
	if msgs == nil {
		msgs = []graph.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleGetMail(w http.ResponseWriter, r *http.Request) {
	msg, err := s.findFirst(r)
	if err != nil {
		s.fail(w, r, "get mail", err)
		return
	}
	writeJSON(w, http.StatusOK, msg.Mail())
}

func (s *Server) handleGetCodeOrLink(w http.ResponseWriter, r *http.Request) {
	msg, err := s.findFirst(r)
	if err != nil {
		s.fail(w, r, "get code or link", err)
		return
	}

	q := r.URL.Query()
	result := s.extractor.Extract(r.Context(), msg.BodyContent(), extract.Query{
		Pattern: q.Get("pattern"),
		Between: q.Get("between"),
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteAll(folder string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.mail.DeleteAll(r.Context(), credential(r), folder); err != nil {
			s.fail(w, r, "delete all "+folder+" emails", err)
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *Server) findFirst(r *http.Request) (*graph.Message, error) {
	q := r.URL.Query()
	top, err := intParam(q.Get("top"), graph.DefaultFindLimit)
	if err != nil {
		return nil, err
	}
	return s.mail.FindFirst(r.Context(), credential(r), graph.FindQuery{
		Folder:          folderParam(r),
		Limit:           top,
		SubjectContains: q.Get("subject_pattern"),
		Sender:          q.Get("sender"),
	})
}

// fail writes the error response for err: 400 for unparseable input and
// 500 for everything else.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var bad *badRequestError
	if errors.As(err, &bad) {
		writeError(w, http.StatusBadRequest, bad.Error())
		return
	}
	s.logger.Error("Request failed",
		logging.Operation(op),
		slog.String(logging.KeyRoute, r.URL.Path),
		logging.Err(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func credential(r *http.Request) graph.Credential {
	q := r.URL.Query()
	return graph.Credential{
		ClientID:     q.Get("client_id"),
		RefreshToken: q.Get("refresh_token"),
	}
}

func folderParam(r *http.Request) string {
	if f := r.URL.Query().Get("folder_id"); f != "" {
		return f
	}
	return graph.FolderInbox
}

// intParam parses an optional integer query parameter.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &badRequestError{msg: fmt.Sprintf("invalid top %q: must be an integer", raw)}
	}
	return n, nil
}
