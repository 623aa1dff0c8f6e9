package report

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	rep, err := h.svc.Create(r.Context(), userID, req.SiteID, Reason(req.Reason), req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, rep)
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

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.svc.List(r.Context(), Status(r.URL.Query().Get("status")), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	writePage(w, page)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid report id")
		return
	}

	var req ResolveRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	rep, err := h.svc.Resolve(r.Context(), adminID, id, req.Action, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, rep)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, site.ErrSiteNotFound):
		response.BadRequest(w, "site does not exist")
	case errors.Is(err, site.ErrSiteInactive):
		response.BadRequest(w, "site is not active")
	case errors.Is(err, ErrDuplicateReport):
		response.Conflict(w, "an open report for this site already exists")
	case errors.Is(err, ErrReportNotFound):
		response.NotFound(w, "report not found")
	case errors.Is(err, ErrAlreadyResolved):
		response.Conflict(w, "report has already been resolved")
	case errors.Is(err, ErrInvalidAction):
		response.BadRequest(w, "action must be confirm or dismiss")
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

// Routes returns the user-facing report router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.ListMine)
	return r
}

// AdminRoutes returns the moderation router for managers and admins
func (h *Handler) AdminRoutes(authMiddleware, moderatorMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(moderatorMiddleware)
	r.Get("/", h.ListAll)
	r.Post("/{id}/resolve", h.Resolve)
	return r
}
