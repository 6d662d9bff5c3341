package labels

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/librarium/librarium/internal/platform/httpx"
)

// Handler exposes label endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches label routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/configurations", h.listConfigurations)
	r.Put("/configurations", h.saveConfiguration)
	r.Delete("/configurations/{id}", h.deleteConfiguration)
	r.Get("/prints", h.listPrints)
	r.Post("/prints", h.createPrint)
	r.Get("/prints/{id}", h.getPrint)
	r.Get("/prints/{id}/pdf", h.printPDF)
	r.Delete("/prints/{id}", h.deletePrint)
}

func (h *Handler) listConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.Configurations(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"configurations": configs})
}

func (h *Handler) saveConfiguration(w http.ResponseWriter, r *http.Request) {
	var c PageConfiguration
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	saved, err := h.service.SaveConfiguration(r.Context(), c)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) deleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteConfiguration(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPrints(w http.ResponseWriter, r *http.Request) {
	prints, err := h.service.Prints(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"prints": prints})
}

func (h *Handler) createPrint(w http.ResponseWriter, r *http.Request) {
	var input CreatePrintInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreatePrint(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getPrint(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetPrint(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) printPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	pdf, err := h.service.RenderPrint(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="labels.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) deletePrint(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePrint(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConfigurationNotFound), errors.Is(err, ErrPrintNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadPaperSize), errors.Is(err, ErrBadGrid), errors.Is(err, ErrNoSpecimens), errors.Is(err, ErrBadBarcodeNumber):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("labels request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
