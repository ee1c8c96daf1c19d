package orderquery

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/httpx"
)

// Handler serves the search endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers search routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders/search", h.search)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := Query{
		Type:      OrderType(strings.ToUpper(params.Get("type"))),
		Scope:     Scope(strings.ToUpper(params.Get("scope"))),
		Search:    params.Get("search"),
		Status:    params.Get("status"),
		Category:  params.Get("category"),
		DateField: params.Get("date_field"),
		SortBy:    params.Get("sort"),
		SortDir:   params.Get("dir"),
	}
	q.Page, _ = strconv.Atoi(params.Get("page"))
	q.Size, _ = strconv.Atoi(params.Get("size"))

	var err error
	if q.From, err = parseDate(params.Get("from")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	if q.To, err = parseDate(params.Get("to")); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}

	result, err := h.service.Search(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	body := map[string]any{"total": result.Total, "page": result.Page, "size": result.Size}
	if q.Type == TypePurchase {
		items := make([]purchaseRow, 0, len(result.PurchaseOrders))
		for _, po := range result.PurchaseOrders {
			items = append(items, purchaseRow{
				ID:          po.ID,
				PONumber:    po.PONumber,
				ProductID:   po.ProductID,
				SKU:         po.SKU,
				SupplierID:  po.SupplierID,
				OrderedQty:  po.OrderedQty,
				ReceivedQty: po.ReceivedQty,
				Status:      string(po.Status),
				OrderDate:   po.OrderDate,
			})
		}
		body["items"] = items
	} else {
		items := make([]salesRow, 0, len(result.SalesOrders))
		for _, o := range result.SalesOrders {
			items = append(items, salesRow{
				ID:             o.ID,
				OrderReference: o.OrderReference,
				CustomerName:   o.CustomerName,
				Destination:    o.Destination,
				Status:         string(o.Status),
				ItemCount:      len(o.Items),
				CreatedAt:      o.CreatedAt,
			})
		}
		body["items"] = items
	}
	httpx.JSON(w, http.StatusOK, body)
}

type salesRow struct {
	ID             int64     `json:"id"`
	OrderReference string    `json:"order_reference"`
	CustomerName   string    `json:"customer_name"`
	Destination    string    `json:"destination"`
	Status         string    `json:"status"`
	ItemCount      int       `json:"item_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type purchaseRow struct {
	ID          int64     `json:"id"`
	PONumber    string    `json:"po_number"`
	ProductID   int64     `json:"product_id"`
	SKU         string    `json:"sku"`
	SupplierID  int64     `json:"supplier_id"`
	OrderedQty  int       `json:"ordered_qty"`
	ReceivedQty int       `json:"received_qty"`
	Status      string    `json:"status"`
	OrderDate   time.Time `json:"order_date"`
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
