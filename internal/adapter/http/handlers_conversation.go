package adapthttp

import (
	"errors"
	"net/http"

	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
)

// conversationRequest is either a raw action or a button payload.
type conversationRequest struct {
	conversation.Action
	Payload string `json:"payload,omitempty"`
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Conversation.Current(r.Context(), userFromContext(r).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":  session != nil,
		"session": session,
	})
}

func (s *Server) handleConversationPost(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	a := req.Action
	if req.Payload != "" {
		a = conversation.ActionFromPayload(req.Payload)
	}
	if a.Kind == "" {
		writeError(w, http.StatusBadRequest, errors.New("kind or payload is required"))
		return
	}
	s.reply(w, r, a)
}

func (s *Server) handleConversationCancel(w http.ResponseWriter, r *http.Request) {
	s.reply(w, r, conversation.Cancel())
}

// reply applies a and writes the reply. Rejected actions still carry a
// reply telling the user what to do next.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, a conversation.Action) {
	reply, err := s.svc.Conversation.Handle(r.Context(), userFromContext(r).ID, a)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, reply)
	case reply == nil:
		writeDomainError(w, r, err)
	default:
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "reply": reply})
	}
}
