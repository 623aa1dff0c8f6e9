package ledger

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/middleware"
	"github.com/siterank/siterank-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, balance)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.svc.ListTransactions(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Paginated(w, page.Data, response.Meta{
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
		Limit:      page.Limit,
	})
}
