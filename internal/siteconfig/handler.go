package siteconfig

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/librarium/librarium/internal/platform/httpx"
)

// Handler exposes configuration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches configuration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.save)
	r.Get("/email", h.getEmail)
	r.Put("/email", h.saveEmail)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Configuration(r.Context())
	if err != nil {
		h.logger.Error("get configuration", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var c Configuration
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.Save(r.Context(), c); err != nil {
		if errors.Is(err, ErrBadWorkingDays) || errors.Is(err, ErrBadEndingHour) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("save configuration", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) getEmail(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.EmailSettings(r.Context())
	if err != nil {
		h.logger.Error("get email settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) saveEmail(w http.ResponseWriter, r *http.Request) {
	var s EmailSettings
	if err := httpx.DecodeJSON(r, &s); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SaveEmailSettings(r.Context(), s); err != nil {
		h.logger.Error("save email settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}
