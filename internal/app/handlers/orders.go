package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/jersey-shop/internal/service"
)

// Paging - размер страницы по умолчанию и верхняя граница
type Paging struct {
	Default int
	Max     int
}

type OrderItemRequest struct {
	ProductVariantID int64 `json:"product_variant_id" validate:"required,gt=0"`
	Quantity         int   `json:"quantity" validate:"required,min=1,max=10"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *models.Address    `json:"shipping_address" validate:"required"`
	BillingAddress  *models.Address    `json:"billing_address" validate:"omitempty"`
	PaymentMethod   string             `json:"payment_method" validate:"required,min=1,max=50"`
	Notes           *string            `json:"notes" validate:"omitempty,max=1000"`
}

// CreateOrderHandler обрабатывает POST /api/orders
func CreateOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		in := service.CreateOrderInput{
			Items:           make([]service.LineItem, 0, len(req.Items)),
			ShippingAddress: *req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			PaymentMethod:   req.PaymentMethod,
			Notes:           req.Notes,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, service.LineItem{VariantID: it.ProductVariantID, Quantity: it.Quantity})
		}

		order, err := orders.CreateOrder(r.Context(), userID, in)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, toOrderResponse(order))
	}
}

// ListOrdersHandler обрабатывает GET /api/orders
func ListOrdersHandler(log *slog.Logger, orders service.OrderService, paging Paging) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		page, err := parsePage(r, paging.Default, paging.Max)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		list, err := orders.ListOrders(r.Context(), userID, page, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, toOrderResponses(list))
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{orderID}
func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		order, err := orders.GetOrder(r.Context(), orderID, userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, toOrderResponse(order))
	}
}

// CancelOrderHandler обрабатывает POST /api/orders/{orderID}/cancel
func CancelOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if _, err := orders.CancelOrder(r.Context(), orderID, userID); err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Order cancelled successfully"})
	}
}
