package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/httpx"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Handler serves the purchase order workflow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase order routes. The confirm and decline
// endpoints accept GET because they are opened from email links.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase-orders", h.create)
	r.Get("/purchase-orders/{id}", h.get)
	r.Get("/purchase-orders/confirm", h.confirm)
	r.Get("/purchase-orders/decline", h.decline)
	r.Patch("/purchase-orders/{id}", h.update)
	r.Post("/purchase-orders/{id}/receive", h.receive)
	r.Post("/purchase-orders/{id}/cancel", h.cancel)
	r.Post("/purchase-orders/{id}/fail", h.fail)
}

type createOrderRequest struct {
	ProductID       int64      `json:"product_id" validate:"required,gt=0"`
	SupplierID      int64      `json:"supplier_id" validate:"required,gt=0"`
	OrderedQty      int        `json:"ordered_qty" validate:"required,gte=1"`
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`
	Notes           string     `json:"notes,omitempty" validate:"max=1000"`
}

type orderResponse struct {
	ID              int64      `json:"id"`
	PONumber        string     `json:"po_number"`
	ProductID       int64      `json:"product_id"`
	SKU             string     `json:"sku"`
	SupplierID      int64      `json:"supplier_id"`
	OrderedQty      int        `json:"ordered_qty"`
	ReceivedQty     int        `json:"received_qty"`
	Status          string     `json:"status"`
	OrderDate       time.Time  `json:"order_date"`
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`
	ActualArrival   *time.Time `json:"actual_arrival,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	OrderedBy       string     `json:"ordered_by"`
	UpdatedBy       string     `json:"updated_by"`
	LastUpdated     time.Time  `json:"last_updated"`
	Version         int64      `json:"version"`
}

func toOrderResponse(po PurchaseOrder) orderResponse {
	return orderResponse{
		ID:              po.ID,
		PONumber:        po.PONumber,
		ProductID:       po.ProductID,
		SKU:             po.SKU,
		SupplierID:      po.SupplierID,
		OrderedQty:      po.OrderedQty,
		ReceivedQty:     po.ReceivedQty,
		Status:          string(po.Status),
		OrderDate:       po.OrderDate,
		ExpectedArrival: po.ExpectedArrival,
		ActualArrival:   po.ActualArrival,
		Notes:           po.Notes,
		OrderedBy:       po.OrderedBy,
		UpdatedBy:       po.UpdatedBy,
		LastUpdated:     po.LastUpdated,
		Version:         po.Version,
	}
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
	actor := shared.ActorFromContext(r.Context())
	po, err := h.service.Create(r.Context(), CreateInput{
		ProductID:       req.ProductID,
		SupplierID:      req.SupplierID,
		OrderedQty:      req.OrderedQty,
		ExpectedArrival: req.ExpectedArrival,
		Notes:           req.Notes,
		Actor:           actor.Name,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(po))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var expected *time.Time
	if raw := q.Get("expected_arrival"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected_arrival must be YYYY-MM-DD")
			return
		}
		expected = &t
	}
	po, err := h.service.Confirm(r.Context(), q.Get("token"), expected)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.CancelByToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

type updateOrderRequest struct {
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	Version         int64      `json:"version,omitempty" validate:"gte=0"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
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
	po, err := h.service.Update(r.Context(), UpdateInput{
		OrderID:         id,
		ExpectedArrival: req.ExpectedArrival,
		Notes:           req.Notes,
		Version:         req.Version,
		Actor:           shared.ActorFromContext(r.Context()).Name,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

type receiveRequest struct {
	Qty           int        `json:"qty" validate:"required,gte=1"`
	ActualArrival *time.Time `json:"actual_arrival,omitempty"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ReceiveInput{OrderID: id, Qty: req.Qty, Actor: shared.ActorFromContext(r.Context()).Name}
	if req.ActualArrival != nil {
		input.ActualArrival = *req.ActualArrival
	}
	po, err := h.service.ReceiveStock(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()).Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Fail(r.Context(), id, shared.ActorFromContext(r.Context()).Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(po))
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return 0, false
	}
	return id, true
}
