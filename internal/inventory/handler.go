package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/httpx"
)

// Handler serves the ledger's read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cache   *LowStockCache
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, cache *LowStockCache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/{sku}", h.getRecord)
	r.Get("/inventory/low-stock", h.listLowStock)
}

type recordResponse struct {
	SKU            string `json:"sku"`
	ProductID      int64  `json:"product_id"`
	CurrentStock   int    `json:"current_stock"`
	ReservedStock  int    `json:"reserved_stock"`
	AvailableStock int    `json:"available_stock"`
	MinLevel       int    `json:"min_level"`
	Status         string `json:"status"`
	Location       string `json:"location"`
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		SKU:            rec.SKU,
		ProductID:      rec.ProductID,
		CurrentStock:   rec.CurrentStock,
		ReservedStock:  rec.ReservedStock,
		AvailableStock: rec.AvailableStock(),
		MinLevel:       rec.MinLevel,
		Status:         string(rec.Status),
		Location:       rec.Location,
	}
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort")
	direction := r.URL.Query().Get("dir")

	// Cached snapshot only answers the default ordering.
	if sortBy == "" && direction == "" && h.cache != nil {
		if records, ok, err := h.cache.Get(r.Context()); err == nil && ok {
			httpx.JSON(w, http.StatusOK, toLowStockResponse(records))
			return
		}
	}

	records, err := h.service.ListLowStock(r.Context(), sortBy, direction)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLowStockResponse(records))
}

func toLowStockResponse(records []Record) map[string]any {
	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toRecordResponse(rec))
	}
	return map[string]any{"items": items, "total": len(items)}
}
