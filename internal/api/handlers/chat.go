// chat.go — POST /api/v1/chat, ответы ассистента каталога.
// Ограничение частоты — на уровне middleware (RateLimiter, scope chat).
package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/chatbot"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

// Chat — POST /api/v1/chat.
func (h *APIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.Assistant.Reply(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chatbot.ErrEmptyMessage), errors.Is(err, chatbot.ErrMessageTooLong):
			apierrors.ValidationError(w, err.Error())
		default:
			h.writeServiceError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply.Text, Source: reply.Source})
}
