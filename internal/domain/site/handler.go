package site

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/pkg/cursor"
	"github.com/siterank/siterank-api/internal/pkg/response"
	"github.com/siterank/siterank-api/internal/pkg/validator"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// CreateSiteRequest for admin site creation
type CreateSiteRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	URL         string `json:"url" validate:"required,url"`
	Category    string `json:"category" validate:"required,min=2,max=100"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// UpdateSiteRequest for admin site updates
type UpdateSiteRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	URL         *string `json:"url,omitempty" validate:"omitempty,url"`
	Category    *string `json:"category,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Active      *bool   `json:"active,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := cursor.ClampLimit(atoi(r.URL.Query().Get("limit")))

	var cur *cursor.Cursor
	if c, ok := cursor.Decode(r.URL.Query().Get("cursor")); ok {
		cur = &c
	}

	sites, err := h.repo.List(r.Context(), cur, limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	page, hasMore := cursor.Trim(sites, limit)
	meta := response.Meta{HasMore: hasMore, Limit: limit}
	if hasMore {
		last := page[len(page)-1]
		token := cursor.Encode(last.ID, last.CreatedAt)
		meta.NextCursor = &token
	}

	response.Paginated(w, page, meta)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid site id")
		return
	}

	s, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			response.NotFound(w, "site not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, s)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	s := &Site{
		Name:     req.Name,
		URL:      req.URL,
		Category: req.Category,
		Active:   true,
	}
	if req.Description != "" {
		s.Description = sql.NullString{String: req.Description, Valid: true}
	}

	if err := h.repo.Create(r.Context(), s); err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, s)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid site id")
		return
	}

	var req UpdateSiteRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	s, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			response.NotFound(w, "site not found")
			return
		}
		response.InternalError(w)
		return
	}

	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.URL != nil {
		s.URL = *req.URL
	}
	if req.Category != nil {
		s.Category = *req.Category
	}
	if req.Description != nil {
		s.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.Active != nil {
		s.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), s); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, s)
}

// Routes returns the public site directory router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

// AdminRoutes returns the admin site management router
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	return r
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
