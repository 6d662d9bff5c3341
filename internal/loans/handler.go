package loans

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/librarium/librarium/internal/platform/httpx"
)

// Handler exposes loan and policy endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches loan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/due-board", h.dueBoard)
	r.Get("/{id}", h.get)
	r.Post("/{id}/renew", h.renew)
	r.Post("/{id}/unrenew", h.unrenew)
	r.Post("/{id}/return", h.ret)

	r.Get("/policies", h.listPolicies)
	r.Post("/policies", h.createPolicy)
	r.Get("/policies/{id}", h.getPolicy)
	r.Put("/policies/{id}", h.updatePolicy)
	r.Delete("/policies/{id}", h.deletePolicy)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	q := r.URL.Query()
	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user_id")
			return
		}
		filter.UserID = &id
	}
	if raw := q.Get("specimen_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid specimen_id")
			return
		}
		filter.SpecimenID = &id
	}
	filter.OnlyOpen = q.Get("open") == "true"
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if filter.Limit < 1 || filter.Limit > 200 {
		filter.Limit = 50
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	filter.Offset = (page - 1) * filter.Limit

	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loans": loans, "page": page})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateLoanInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	view, rejection, err := h.service.CreateLoan(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if !rejection.OK() {
		httpx.RespondRejection(w, string(rejection))
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) dueBoard(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.DueBoard(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loans": views})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Renew)
}

func (h *Handler) unrenew(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Unrenew)
}

func (h *Handler) ret(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Return)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (LoanView, Rejection, error)) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	view, rejection, err := op(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if !rejection.OK() {
		httpx.RespondRejection(w, string(rejection))
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.Policies(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (h *Handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	var p Policy
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := h.service.CreatePolicy(r.Context(), p)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Policy(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var p Policy
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	p.ID = id
	if err := h.service.UpdatePolicy(r.Context(), p); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePolicy(r.Context(), id); err != nil {
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
	case errors.Is(err, ErrLoanNotFound), errors.Is(err, ErrPolicyNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoDefaultPolicy), errors.Is(err, ErrNoOpenDay), errors.Is(err, ErrPolicyInUse):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("loans request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
