package api

import (
	"context"
	"net/http"

	service "github.com/okian/formeval/internal/app"
	"github.com/okian/formeval/internal/domain/model"
)

// SessionDependencies defines the rating workflow used by the session routes.
type SessionDependencies interface {
	StartSession(ctx context.Context, expert string) (service.View, error)
	Current(ctx context.Context, expert string) (service.View, error)
	SetDraft(ctx context.Context, expert string, label model.FormLabel, score int) (service.View, error)
	Submit(ctx context.Context, expert string, d service.Draft) (service.Outcome, error)
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type startRequest struct {
	Expert string `json:"expert"`
}

type draftRequest struct {
	Label model.FormLabel `json:"label"`
	Score int             `json:"score"`
}

// HandleStart handles POST /sessions requests.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.StartSession(r.Context(), req.Expert)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleGet handles GET /sessions/{expert} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Current(r.Context(), r.PathValue("expert"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleDraft handles PUT /sessions/{expert}/draft requests.
func (h *SessionsHandler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_draft"
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.SetDraft(r.Context(), r.PathValue("expert"), req.Label, req.Score)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSubmit handles POST /sessions/{expert}/submit requests.
func (h *SessionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	var req service.Draft
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.Submit(r.Context(), r.PathValue("expert"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
