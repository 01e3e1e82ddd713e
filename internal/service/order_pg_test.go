package service_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/inventory"
	"github.com/linemk/jersey-shop/internal/pricing"
	"github.com/linemk/jersey-shop/internal/service"
	"github.com/linemk/jersey-shop/internal/storage"
	"github.com/stretchr/testify/assert"
)

// сервис поверх настоящего TxManager: проверяем границы транзакции через sqlmock

func newPostgresOrderService(t *testing.T) (service.OrderService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := discardLogger()
	svc := service.NewOrderService(
		log,
		storage.NewTxManager(db),
		storage.NewOrderRepository(db),
		inventory.NewLedger(log),
		pricing.NewDefaultCalculator(),
		&seqNumbers{},
		service.OrderServiceConfig{CreateTimeout: time.Second, NumberAttempts: 2, EventExchange: "orders"},
	)
	return svc, mock
}

func TestCreateOrder_Postgres_RollbackOnInsufficientStock(t *testing.T) {
	svc, mock := newPostgresOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE product_variants v")).
		WithArgs(3, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT stock_quantity FROM product_variants WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(2))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), 1, input(service.LineItem{VariantID: 1, Quantity: 3}))
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrder_Postgres_LockedOrderIsRetryable(t *testing.T) {
	svc, mock := newPostgresOrderService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE NOWAIT")).
		WithArgs(int64(5), int64(1)).
		WillReturnError(&pq.Error{Code: "55P03"})
	mock.ExpectRollback()

	_, err := svc.CancelOrder(context.Background(), 5, 1)
	assert.ErrorIs(t, err, storage.ErrResourceLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrder_Postgres_InvalidTransitionRollsBack(t *testing.T) {
	svc, mock := newPostgresOrderService(t)
	now := time.Now()

	cols := []string{
		"id", "order_number", "user_id", "status",
		"subtotal", "tax_amount", "shipping_amount", "total_amount",
		"shipping_address", "billing_address", "payment_method", "payment_status",
		"tracking_number", "notes", "created_at", "updated_at",
	}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE NOWAIT")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			5, "ORD-20240101-AAAAAAAAAAAA", 1, "delivered",
			"10.00", "0.80", "9.99", "20.79",
			[]byte(`{"first_name":"Sam"}`), nil, "card", "pending",
			"1Z", nil, now, now,
		))
	mock.ExpectRollback()

	_, err := svc.CancelOrder(context.Background(), 5, 1)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
