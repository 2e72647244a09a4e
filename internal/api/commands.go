package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/gridswitch/internal/command"
)

// handleSendCommand runs a command over HTTP. The body is the same document
// a bus message carries and ?query= is the topic remainder after the short
// topic. The outcome is the response body; a response_topic in the body is
// still honoured.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "reading request body failed")
		return
	}

	topic := s.resolver.ShortTopic()
	if query := strings.TrimPrefix(r.URL.Query().Get("query"), "/"); query != "" {
		topic = strings.TrimSuffix(topic, "/") + "/" + query
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("command submitted over http",
		"subject", claims.Subject,
		"topic", topic,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	res, err := s.commands.HandleMessage(r.Context(), topic, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, command.NewErrorResponse(res.CommandID, err))
		return
	}
	writeJSON(w, http.StatusOK, command.NewOutcomeResponse(res.CommandID, res.Outcome))
}
