package movements

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/httpx"
)

// Handler serves the movement trail read endpoint.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	refID, _ := strconv.ParseInt(q.Get("reference_id"), 10, 64)
	filter := ListFilter{
		SKU:           q.Get("sku"),
		Direction:     Direction(q.Get("direction")),
		ReferenceType: ReferenceType(q.Get("reference_type")),
		ReferenceID:   refID,
		Limit:         limit,
	}
	if raw := q.Get("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = ts
		}
	}
	if raw := q.Get("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = ts
		}
	}

	movements, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		items = append(items, movementResponse{
			ID:            m.ID,
			ProductID:     m.ProductID,
			SKU:           m.SKU,
			Quantity:      m.Quantity,
			Direction:     string(m.Direction),
			ReferenceID:   m.ReferenceID,
			ReferenceType: string(m.ReferenceType),
			CreatedBy:     m.CreatedBy,
			CreatedAt:     m.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

type movementResponse struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	SKU           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	Direction     string    `json:"direction"`
	ReferenceID   int64     `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
