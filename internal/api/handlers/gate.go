// gate.go — endpoints шлюза скачивания /api/v1/gate.
// Посетитель идентифицируется cookie sv_visitor (UUID), выдаваемой при первом обращении.
package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

const (
	// VisitorCookie — имя cookie идентификатора посетителя.
	VisitorCookie = "sv_visitor"
	// visitorCookieTTL — срок жизни cookie посетителя.
	visitorCookieTTL = 30 * 24 * time.Hour
)

// VisitorID возвращает идентификатор посетителя из cookie или выдаёт новый.
func VisitorID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(visitorCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

type openGateRequest struct {
	Collection string             `json:"collection"`
	ID         openapi_types.UUID `json:"id"`
}

// GateState — GET /api/v1/gate.
func (h *APIHandler) GateState(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorID(w, r)
	writeJSON(w, http.StatusOK, gateToAPI(h.svc.Gates.State(visitor)))
}

// OpenGate — POST /api/v1/gate.
func (h *APIHandler) OpenGate(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorID(w, r)

	var req openGateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	collection, err := model.ParseCollection(req.Collection)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.ID == uuid.Nil {
		apierrors.ValidationError(w, "Поле id обязательно")
		return
	}

	st, err := h.svc.Gates.Open(r.Context(), visitor, collection, req.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gateToAPI(st))
}

// ConfirmGate — POST /api/v1/gate/confirm.
// Ответ отправляется после задержки закрытия, когда ссылка выдана.
func (h *APIHandler) ConfirmGate(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorID(w, r)
	url, err := h.svc.Gates.Confirm(r.Context(), visitor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

// CancelGate — POST /api/v1/gate/cancel.
func (h *APIHandler) CancelGate(w http.ResponseWriter, r *http.Request) {
	visitor := VisitorID(w, r)
	if err := h.svc.Gates.Cancel(visitor); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gateToAPI(h.svc.Gates.State(visitor)))
}
