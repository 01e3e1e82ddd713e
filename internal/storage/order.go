package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/linemk/jersey-shop/internal/domain/models"
)

// OrderFilter - параметры выборки списка заказов
type OrderFilter struct {
	UserID *int64              // nil - заказы всех пользователей
	Status *models.OrderStatus // nil - без фильтра по статусу
	Offset uint64
	Limit  uint64
}

// OrderStorage описывает методы для работы с заказами и их позициями.
type OrderStorage interface {
	// CreateOrder вставляет заказ. При совпадении order_number возвращает ErrDuplicateOrderNumber,
	// транзакция при этом остаётся рабочей.
	CreateOrder(ctx context.Context, order *models.Order) error
	// CreateOrderItems вставляет позиции заказа
	CreateOrderItems(ctx context.Context, orderID int64, items []*models.OrderItem) error
	// GetOrder возвращает заказ; при userID != nil только если он принадлежит пользователю
	GetOrder(ctx context.Context, id int64, userID *int64) (*models.Order, error)
	// LockOrder как GetOrder, но блокирует строку до конца транзакции (NOWAIT)
	LockOrder(ctx context.Context, id int64, userID *int64) (*models.Order, error)
	// GetOrderItems загружает позиции сразу для нескольких заказов
	GetOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]*models.OrderItem, error)
	// ListOrders возвращает заказы от новых к старым
	ListOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error)
	// UpdateStatus записывает status и tracking_number заказа, обновляет UpdatedAt
	UpdateStatus(ctx context.Context, order *models.Order) error
}

// orderRepository - конкретная реализация OrderStorage.
type orderRepository struct {
	db DBTX
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db DBTX) OrderStorage {
	return &orderRepository{db: db}
}

var orderColumns = []string{
	"id", "order_number", "user_id", "status",
	"subtotal", "tax_amount", "shipping_amount", "total_amount",
	"shipping_address", "billing_address", "payment_method", "payment_status",
	"tracking_number", "notes", "created_at", "updated_at",
}

var itemColumns = []string{
	"id", "order_id", "product_id", "product_variant_id", "product_name", "product_image",
	"size", "color", "quantity", "unit_price", "total_price",
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*models.Order, error) {
	o := &models.Order{}
	var billing models.NullAddress
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.TotalAmount,
		&o.ShippingAddress, &billing, &o.PaymentMethod, &o.PaymentStatus,
		&o.TrackingNumber, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.BillingAddress = billing.Ptr()
	return o, nil
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `INSERT INTO orders (
			order_number, user_id, status, subtotal, tax_amount, shipping_amount, total_amount,
			shipping_address, billing_address, payment_method, payment_status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (order_number) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		order.OrderNumber, order.UserID, order.Status,
		order.Subtotal, order.TaxAmount, order.ShippingAmount, order.TotalAmount,
		order.ShippingAddress, models.NewNullAddress(order.BillingAddress),
		order.PaymentMethod, order.PaymentStatus, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		// строки нет только при конфликте номера; 23505 по другому ограничению уже оборвал транзакцию
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to create order: %w", mapError(err))
	}
	return nil
}

func (r *orderRepository) CreateOrderItems(ctx context.Context, orderID int64, items []*models.OrderItem) error {
	query := `INSERT INTO order_items (
			order_id, product_id, product_variant_id, product_name, product_image,
			size, color, quantity, unit_price, total_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	for _, item := range items {
		item.OrderID = orderID
		err := r.db.QueryRowContext(ctx, query,
			orderID, item.ProductID, item.ProductVariantID, item.ProductName, item.ProductImage,
			item.Size, item.Color, item.Quantity, item.UnitPrice, item.TotalPrice,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", mapError(err))
		}
	}
	return nil
}

func (r *orderRepository) selectOrder(id int64, userID *int64) sq.SelectBuilder {
	b := psql().Select(orderColumns...).From("orders").Where(sq.Eq{"id": id})
	if userID != nil {
		b = b.Where(sq.Eq{"user_id": *userID})
	}
	return b
}

func (r *orderRepository) getOrder(ctx context.Context, b sq.SelectBuilder) (*models.Order, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, mapError(err)
	}
	return order, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id int64, userID *int64) (*models.Order, error) {
	return r.getOrder(ctx, r.selectOrder(id, userID))
}

func (r *orderRepository) LockOrder(ctx context.Context, id int64, userID *int64) (*models.Order, error) {
	return r.getOrder(ctx, r.selectOrder(id, userID).Suffix("FOR UPDATE NOWAIT"))
}

func (r *orderRepository) GetOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]*models.OrderItem, error) {
	result := make(map[int64][]*models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	query, args, err := psql().Select(itemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductVariantID, &item.ProductName, &item.ProductImage,
			&item.Size, &item.Color, &item.Quantity, &item.UnitPrice, &item.TotalPrice,
		); err != nil {
			return nil, err
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	b := psql().Select(orderColumns...).From("orders")
	if filter.UserID != nil {
		b = b.Where(sq.Eq{"user_id": *filter.UserID})
	}
	if filter.Status != nil {
		b = b.Where(sq.Eq{"status": *filter.Status})
	}
	query, args, err := b.OrderBy("created_at DESC", "id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *models.Order) error {
	err := r.db.QueryRowContext(ctx,
		"UPDATE orders SET status = $1, tracking_number = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at",
		order.Status, order.TrackingNumber, order.ID,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to update order status: %w", mapError(err))
	}
	return nil
}
