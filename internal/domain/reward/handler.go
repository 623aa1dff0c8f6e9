package reward

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/middleware"
	"github.com/siterank/siterank-api/internal/pkg/response"
	"github.com/siterank/siterank-api/internal/pkg/validator"
)

type Handler struct {
	engine *Engine
	repo   *Repository
}

func NewHandler(engine *Engine, repo *Repository) *Handler {
	return &Handler{engine: engine, repo: repo}
}

// ClaimAttendance handles POST /points/attendance
func (h *Handler) ClaimAttendance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	record, err := h.engine.ClaimAttendance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			response.Conflict(w, "attendance already claimed today")
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, record)
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.ListSettings(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, settings)
}

func (h *Handler) UpsertSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		response.BadRequest(w, "setting key is required")
		return
	}

	var req UpsertSettingRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	setting := &Setting{Key: key, Name: req.Name, Point: req.Point}
	if err := h.repo.UpsertSetting(r.Context(), setting); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, setting)
}

// Grant handles POST /points/grant (admin)
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetUserID(r.Context())

	var req GrantRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	record, err := h.engine.Grant(r.Context(), adminID, req.UserID, req.Points, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidGrant):
			response.BadRequest(w, "points must be non-zero")
		case errors.Is(err, ledger.ErrInsufficientPoints):
			response.InsufficientPoints(w, "balance cannot cover this adjustment")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, record)
}

// AdminRoutes returns the admin reward router
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)
	r.Get("/reward-settings", h.ListSettings)
	r.Put("/reward-settings/{key}", h.UpsertSetting)
	r.Post("/points/grant", h.Grant)
	return r
}
