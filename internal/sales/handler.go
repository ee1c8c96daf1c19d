package sales

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/httpx"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Handler serves the sales order workflow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales-orders", h.create)
	r.Get("/sales-orders/{id}", h.get)
	r.Patch("/sales-orders/{id}", h.update)
	r.Post("/sales-orders/{id}/items", h.addItems)
	r.Delete("/sales-orders/{id}/items/{itemID}", h.removeItem)
	r.Post("/sales-orders/{id}/items/{itemID}/approve", h.approveItem)
	r.Post("/sales-orders/{id}/ship", h.ship)
	r.Post("/sales-orders/{id}/deliver", h.deliver)
	r.Post("/sales-orders/{id}/complete", h.complete)
	r.Post("/sales-orders/{id}/cancel", h.cancel)
}

type itemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

type createOrderRequest struct {
	Destination           string        `json:"destination" validate:"max=500"`
	CustomerName          string        `json:"customer_name" validate:"required,max=255"`
	Items                 []itemRequest `json:"items" validate:"required,min=1,dive"`
	EstimatedDeliveryDate *time.Time    `json:"estimated_delivery_date,omitempty"`
}

type itemResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	ApprovedQty int     `json:"approved_qty"`
	ShippedQty  int     `json:"shipped_qty"`
	UnitPrice   float64 `json:"unit_price"`
	Status      string  `json:"status"`
}

type orderResponse struct {
	ID                    int64          `json:"id"`
	OrderReference        string         `json:"order_reference"`
	Destination           string         `json:"destination"`
	CustomerName          string         `json:"customer_name"`
	Status                string         `json:"status"`
	Items                 []itemResponse `json:"items"`
	EstimatedDeliveryDate *time.Time     `json:"estimated_delivery_date,omitempty"`
	DeliveryDate          *time.Time     `json:"delivery_date,omitempty"`
	CreatedBy             string         `json:"created_by"`
	UpdatedBy             string         `json:"updated_by"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func toOrderResponse(o SalesOrder) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, itemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			ApprovedQty: item.ApprovedQty,
			ShippedQty:  item.ShippedQty,
			UnitPrice:   item.UnitPrice,
			Status:      string(item.Status),
		})
	}
	return orderResponse{
		ID:                    o.ID,
		OrderReference:        o.OrderReference,
		Destination:           o.Destination,
		CustomerName:          o.CustomerName,
		Status:                string(o.Status),
		Items:                 items,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		DeliveryDate:          o.DeliveryDate,
		CreatedBy:             o.CreatedBy,
		UpdatedBy:             o.UpdatedBy,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func toItemInputs(items []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		Destination:           req.Destination,
		CustomerName:          req.CustomerName,
		Items:                 toItemInputs(req.Items),
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
		Actor:                 shared.ActorFromContext(r.Context()).Name,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

type updateOrderRequest struct {
	Destination           *string    `json:"destination,omitempty"`
	CustomerName          *string    `json:"customer_name,omitempty" validate:"omitempty,max=255"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Update(r.Context(), UpdateInput{
		OrderID:               id,
		Destination:           req.Destination,
		CustomerName:          req.CustomerName,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
		Actor:                 shared.ActorFromContext(r.Context()).Name,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

type addItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req addItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.AddItems(r.Context(), id, toItemInputs(req.Items), shared.ActorFromContext(r.Context()).Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	order, err := h.service.RemoveItem(r.Context(), id, itemID, shared.ActorFromContext(r.Context()).Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

type approveRequest struct {
	ApprovedQty int `json:"approved_qty" validate:"gte=0"`
}

func (h *Handler) approveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req approveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.ApproveItem(r.Context(), id, itemID, req.ApprovedQty, shared.ActorFromContext(r.Context()).Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Ship)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.MarkDelivered)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Complete)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.Cancel)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orderID int64, actor string) (SalesOrder, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := op(r.Context(), id, shared.ActorFromContext(r.Context()).Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+key)
		return 0, false
	}
	return id, true
}
