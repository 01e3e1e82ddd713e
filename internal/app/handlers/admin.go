package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/jersey-shop/internal/service"
)

type UpdateStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"tracking_number" validate:"omitempty,max=100"`
}

// AdminListOrdersHandler обрабатывает GET /api/admin/orders
func AdminListOrdersHandler(log *slog.Logger, orders service.OrderService, paging Paging) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminListOrdersHandler"
		logger := log.With(slog.String("op", op))

		page, err := parsePage(r, paging.Default, paging.Max)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		list, err := orders.ListAllOrders(r.Context(), page, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, toOrderResponses(list))
	}
}

// UpdateOrderStatusHandler обрабатывает PUT /api/admin/orders/{orderID}/status
func UpdateOrderStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := orderIDParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req UpdateStatusRequest
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

		order, err := orders.UpdateStatus(r.Context(), orderID, req.Status, req.TrackingNumber)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, toOrderResponse(order))
	}
}
