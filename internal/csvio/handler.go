package csvio

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/librarium/librarium/internal/platform/httpx"
)

// Handler exposes CSV import and export endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches CSV routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/books.csv", h.exportBooks)
	r.Post("/books.csv", h.importBooks)
}

func (h *Handler) exportBooks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="books.csv"`)
	if err := h.service.ExportBooks(r.Context(), w); err != nil {
		// Headers may already be out; log and drop the connection.
		h.logger.Error("book export failed", slog.Any("error", err))
	}
}

// importBooks accepts the CSV as the raw request body or as the "file" part
// of a multipart form.
func (h *Handler) importBooks(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "text/csv" && len(ct) > 9 && ct[:9] == "multipart" {
		file, _, err := r.FormFile("file")
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing file part")
			return
		}
		defer file.Close()
		body = file
	}

	report, err := h.service.ImportBooks(r.Context(), body)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("book import failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if len(report.Errors) > 0 && report.Imported == 0 {
		status = http.StatusUnprocessableEntity
	}
	httpx.JSON(w, status, report)
}
