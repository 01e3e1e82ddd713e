package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/inventory"
	"github.com/linemk/jersey-shop/internal/service"
	"github.com/linemk/jersey-shop/internal/storage"
)

var validate = validator.New()

// retryAfterSeconds - подсказка клиенту при конфликте блокировок
const retryAfterSeconds = "1"

type OrderItemResponse struct {
	ID               int64   `json:"id"`
	ProductID        int64   `json:"product_id"`
	ProductVariantID int64   `json:"product_variant_id"`
	ProductName      string  `json:"product_name"`
	ProductImage     *string `json:"product_image"`
	Size             string  `json:"size"`
	Color            *string `json:"color"`
	Quantity         int     `json:"quantity"`
	UnitPrice        string  `json:"unit_price"`
	TotalPrice       string  `json:"total_price"`
}

type OrderResponse struct {
	ID              int64               `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          models.OrderStatus  `json:"status"`
	Subtotal        string              `json:"subtotal"`
	TaxAmount       string              `json:"tax_amount"`
	ShippingAmount  string              `json:"shipping_amount"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress models.Address      `json:"shipping_address"`
	BillingAddress  *models.Address     `json:"billing_address"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	TrackingNumber  *string             `json:"tracking_number"`
	Notes           *string             `json:"notes"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []OrderItemResponse `json:"items"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toOrderResponse(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Subtotal:        o.Subtotal.StringFixed(2),
		TaxAmount:       o.TaxAmount.StringFixed(2),
		ShippingAmount:  o.ShippingAmount.StringFixed(2),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:               it.ID,
			ProductID:        it.ProductID,
			ProductVariantID: it.ProductVariantID,
			ProductName:      it.ProductName,
			ProductImage:     it.ProductImage,
			Size:             it.Size,
			Color:            it.Color,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice.StringFixed(2),
			TotalPrice:       it.TotalPrice.StringFixed(2),
		})
	}
	return resp
}

func toOrderResponses(orders []*models.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	return resp
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError переводит ошибку сервиса в HTTP-ответ
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var stockErr *models.InsufficientStockError

	switch {
	case errors.As(err, &stockErr):
		logger.Warn("insufficient stock", slog.Int64("variantID", stockErr.VariantID))
		http.Error(w, fmt.Sprintf("insufficient stock for variant %d: requested %d, available %d",
			stockErr.VariantID, stockErr.Requested, stockErr.Available), http.StatusBadRequest)
	case errors.Is(err, storage.ErrOrderNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrVariantNotFound):
		http.Error(w, "product variant not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrProductNotFound):
		http.Error(w, "product not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, service.ErrUserExists):
		http.Error(w, "user with this email already exists", http.StatusConflict)
	case errors.Is(err, storage.ErrDuplicateSlug):
		http.Error(w, "product with this slug already exists", http.StatusConflict)
	case errors.Is(err, storage.ErrDuplicateSKU):
		http.Error(w, "variant with this sku already exists", http.StatusConflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, models.ErrInvalidTransition):
		http.Error(w, "order cannot be cancelled", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidStatusValue):
		http.Error(w, "invalid status value", http.StatusBadRequest)
	case errors.Is(err, service.ErrEmptyOrder), errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, service.ErrNegativeStock):
		http.Error(w, "validation error", http.StatusBadRequest)
	case errors.Is(err, storage.ErrResourceLocked), errors.Is(err, service.ErrOrderNumberExhausted):
		logger.Warn("request can be retried", slog.Any("error", err))
		w.Header().Set("Retry-After", retryAfterSeconds)
		http.Error(w, storage.ErrResourceLocked.Error(), http.StatusServiceUnavailable)
	default:
		logger.Error("request failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// parsePage читает skip/limit из query; limit вне [1, max] - ошибка
func parsePage(r *http.Request, defaultLimit, maxLimit int) (service.Page, error) {
	page := service.Page{Limit: defaultLimit}

	if raw := r.URL.Query().Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return page, fmt.Errorf("invalid skip %q", raw)
		}
		page.Skip = skip
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLimit {
			return page, fmt.Errorf("invalid limit %q", raw)
		}
		page.Limit = limit
	}
	return page, nil
}

func orderIDParam(r *http.Request) (int64, error) {
	return idParam(r, "orderID")
}

// idParam читает положительный числовой параметр пути
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
