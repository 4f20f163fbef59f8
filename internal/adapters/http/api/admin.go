package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/formeval/internal/app"
)

// AdminDependencies defines administrative operations.
type AdminDependencies interface {
	Reset(ctx context.Context) error
}

// AdminHandler handles administrative requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

type resetResponse struct {
	Status string `json:"status"`
}

// HandleReset handles POST /admin/reset requests. The route answers 404
// unless the service runs in admin mode.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Reset(r.Context()); err != nil {
		if errors.Is(err, service.ErrAdminDisabled) {
			http.NotFound(w, r)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Status: "reset"})
}
