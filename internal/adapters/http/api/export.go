package api

import (
	"context"
	"mime"
	"net/http"
	"strconv"
)

// ExportDependencies defines the interface for exporting a rater's scores.
type ExportDependencies interface {
	Export(ctx context.Context, expert string) ([]byte, int, error)
}

// ExportHandler handles export requests.
type ExportHandler struct {
	deps ExportDependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ExportDependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleExport handles GET /exports/{expert} requests. The body is the
// rater's rows as a CSV attachment; an empty export is a header-only table.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	expert := r.PathValue("expert")
	data, n, err := h.deps.Export(r.Context(), expert)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": expert + "_scores.csv",
	}))
	w.Header().Set("X-Record-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
