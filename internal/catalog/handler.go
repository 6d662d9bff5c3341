package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/librarium/librarium/internal/platform/httpx"
)

// Handler exposes catalog endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/books", h.listBooks)
	r.Post("/books", h.createBook)
	r.Get("/books/{id}", h.getBook)
	r.Put("/books/{id}", h.updateBook)
	r.Delete("/books/{id}", h.deleteBook)
	r.Get("/books/{id}/specimens", h.listSpecimens)
	r.Post("/books/{id}/specimens", h.addSpecimen)
	r.Delete("/specimens/{id}", h.removeSpecimen)
	r.Get("/specimens/{id}/availability", h.specimenAvailability)
	r.Get("/locations", h.listLocations)
	r.Put("/locations", h.saveLocation)
	r.Get("/classifications", h.listClassifications)
	r.Put("/classifications", h.saveClassification)
	r.Get("/collections", h.listCollections)
	r.Post("/collections", h.addCollection)
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	books, err := h.service.ListBooks(r.Context(), r.URL.Query().Get("search"), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("list books", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"books": books, "page": page})
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var input BookInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	book, err := h.service.CreateBook(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, book)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var input BookInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSpecimens(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	specimens, err := h.service.Specimens(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"specimens": specimens})
}

func (h *Handler) addSpecimen(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	specimen, err := h.service.AddSpecimen(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, specimen)
}

func (h *Handler) removeSpecimen(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveSpecimen(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) specimenAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	available, err := h.service.SpecimenAvailable(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"specimen_id": id, "available": available})
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.Locations(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (h *Handler) saveLocation(w http.ResponseWriter, r *http.Request) {
	var l Location
	if err := httpx.DecodeJSON(r, &l); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SaveLocation(r.Context(), l); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) listClassifications(w http.ResponseWriter, r *http.Request) {
	classifications, err := h.service.Classifications(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"classifications": classifications})
}

func (h *Handler) saveClassification(w http.ResponseWriter, r *http.Request) {
	var c Classification
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SaveClassification(r.Context(), c); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.service.Collections(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (h *Handler) addCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	collection, err := h.service.AddCollection(r.Context(), body.Name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, collection)
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
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrSpecimenNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidISBN):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateISBN):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
