package exchange

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/domain/site"
	"github.com/siterank/siterank-api/internal/middleware"
	"github.com/siterank/siterank-api/internal/pkg/response"
	"github.com/siterank/siterank-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SubmitRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	e, err := h.svc.Submit(r.Context(), userID, req.SiteID, req.PointsAmount, req.SiteUserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, e)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.svc.ListMine(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	writePage(w, page)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid exchange id")
		return
	}

	actor := Actor{ID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}
	e, err := h.svc.Get(r.Context(), id, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, e)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid exchange id")
		return
	}

	e, err := h.svc.Cancel(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, e)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{Status: r.URL.Query().Get("status")}
	if details := validator.Validate(q); details != nil {
		response.ValidationError(w, details)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.svc.ListAll(r.Context(), Status(q.Status), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	writePage(w, page)
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(id uuid.UUID, actor Actor) (*Exchange, error) {
		return h.svc.MoveToProcessing(r.Context(), id, actor)
	})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(id uuid.UUID, actor Actor) (*Exchange, error) {
		return h.svc.Approve(r.Context(), id, actor)
	})
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if r.ContentLength > 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
		if details := validator.Validate(req); details != nil {
			response.ValidationError(w, details)
			return
		}
	}

	h.moderate(w, r, func(id uuid.UUID, actor Actor) (*Exchange, error) {
		return h.svc.Reject(r.Context(), id, actor, req.Reason)
	})
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, fn func(id uuid.UUID, actor Actor) (*Exchange, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid exchange id")
		return
	}

	actor := Actor{ID: middleware.GetUserID(r.Context()), Role: middleware.GetRole(r.Context())}
	e, err := fn(id, actor)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, e)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAmountBelowMinimum):
		response.BadRequest(w, "points amount is below the minimum exchange amount")
	case errors.Is(err, ErrAmountNotMultiple):
		response.BadRequest(w, "points amount must be a positive multiple of the exchange unit")
	case errors.Is(err, site.ErrSiteNotFound):
		response.BadRequest(w, "site does not exist")
	case errors.Is(err, site.ErrSiteInactive):
		response.BadRequest(w, "site is not active")
	case errors.Is(err, ledger.ErrInsufficientPoints):
		response.InsufficientPoints(w, "balance cannot cover the exchange amount")
	case errors.Is(err, ErrExchangeNotFound):
		response.NotFound(w, "exchange not found")
	case errors.Is(err, ErrAlreadyProcessed):
		response.Conflict(w, "exchange is not in a reversible state")
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(w, "exchange belongs to another user")
	default:
		response.InternalError(w)
	}
}

func writePage(w http.ResponseWriter, page *Page) {
	response.Paginated(w, page.Data, response.Meta{
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Limit:      page.Limit,
	})
}

// Routes returns the user-facing exchange router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Submit)
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

// AdminRoutes returns the moderation router for managers and admins
func (h *Handler) AdminRoutes(authMiddleware, moderatorMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(moderatorMiddleware)
	r.Get("/", h.ListAll)
	r.Post("/{id}/process", h.Process)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	return r
}
