package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/inventory"
	"github.com/linemk/jersey-shop/internal/pricing"
	"github.com/linemk/jersey-shop/internal/storage"
)

var (
	ErrEmptyOrder           = errors.New("order must contain at least one item")
	ErrOrderNumberExhausted = errors.New("failed to allocate a unique order number")
)

const defaultPageLimit = 20

// LineItem - запрошенная позиция заказа
type LineItem struct {
	VariantID int64
	Quantity  int
}

// CreateOrderInput - данные для оформления заказа
type CreateOrderInput struct {
	Items           []LineItem
	ShippingAddress models.Address
	BillingAddress  *models.Address
	PaymentMethod   string
	Notes           *string
}

// Page - смещение и размер страницы
type Page struct {
	Skip  int
	Limit int
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string, trackingNumber *string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64, page Page, status string) ([]*models.Order, error)
	ListAllOrders(ctx context.Context, page Page, status string) ([]*models.Order, error)
}

// NumberGenerator выдаёт номера заказов
type NumberGenerator interface {
	Next() string
}

// OrderServiceConfig - настройки сервиса заказов
type OrderServiceConfig struct {
	CreateTimeout   time.Duration
	NumberAttempts  int
	EventExchange   string
	EventMaxRetries int
}

type orderService struct {
	log     *slog.Logger
	tx      storage.TxManager
	orders  storage.OrderStorage
	ledger  *inventory.Ledger
	calc    *pricing.Calculator
	numbers NumberGenerator
	cfg     OrderServiceConfig
}

func NewOrderService(
	log *slog.Logger,
	tx storage.TxManager,
	orders storage.OrderStorage,
	ledger *inventory.Ledger,
	calc *pricing.Calculator,
	numbers NumberGenerator,
	cfg OrderServiceConfig,
) OrderService {
	if cfg.NumberAttempts <= 0 {
		cfg.NumberAttempts = 5
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 10 * time.Second
	}
	if cfg.EventMaxRetries <= 0 {
		cfg.EventMaxRetries = 10
	}
	return &orderService{
		log:     log,
		tx:      tx,
		orders:  orders,
		ledger:  ledger,
		calc:    calc,
		numbers: numbers,
		cfg:     cfg,
	}
}

func (s *orderService) rollback(logger *slog.Logger, uow storage.UnitOfWork) {
	if rbErr := uow.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

// CreateOrder резервирует остатки, считает суммы и сохраняет заказ одной транзакцией.
// Любая ошибка откатывает всё, включая уже сделанные списания.
func (s *orderService) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyOrder)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CreateTimeout)
	defer cancel()

	uow, err := s.tx.Begin(ctx)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	lines := make([]inventory.Line, 0, len(in.Items))
	for _, item := range in.Items {
		lines = append(lines, inventory.Line{VariantID: item.VariantID, Quantity: item.Quantity})
	}

	reservations, err := s.ledger.ReserveAll(ctx, uow.Variants(), lines)
	if err != nil {
		s.rollback(logger, uow)
		logger.Warn("failed to reserve stock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to reserve stock: %w", op, err)
	}

	priced := make([]pricing.Line, 0, len(reservations))
	items := make([]*models.OrderItem, 0, len(reservations))
	for _, r := range reservations {
		priced = append(priced, pricing.Line{UnitPrice: r.UnitPrice, Quantity: r.Quantity})
		items = append(items, &models.OrderItem{
			ProductID:        r.ProductID,
			ProductVariantID: r.VariantID,
			ProductName:      r.ProductName,
			ProductImage:     r.Image,
			Size:             r.Size,
			Color:            r.Color,
			Quantity:         r.Quantity,
			UnitPrice:        r.UnitPrice,
			TotalPrice:       pricing.LineTotal(r.UnitPrice, r.Quantity),
		})
	}
	totals := s.calc.Calculate(priced)

	order := &models.Order{
		UserID:          userID,
		Status:          models.StatusPending,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.TaxAmount,
		ShippingAmount:  totals.ShippingAmount,
		TotalAmount:     totals.TotalAmount,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		Notes:           in.Notes,
	}

	if err := s.insertWithUniqueNumber(ctx, logger, uow, order); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := uow.Orders().CreateOrderItems(ctx, order.ID, items); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to create order items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order items: %w", op, err)
	}
	order.Items = items

	if err := s.publish(ctx, uow, models.EventOrderCreated, order, ""); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to write outbox event", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to write outbox event: %w", op, err)
	}

	if err := uow.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order created",
		slog.Int64("orderID", order.ID),
		slog.String("orderNumber", order.OrderNumber),
		slog.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// insertWithUniqueNumber генерирует номер заново, пока вставка упирается в UNIQUE
func (s *orderService) insertWithUniqueNumber(ctx context.Context, logger *slog.Logger, uow storage.UnitOfWork, order *models.Order) error {
	for attempt := 1; attempt <= s.cfg.NumberAttempts; attempt++ {
		order.OrderNumber = s.numbers.Next()
		err := uow.Orders().CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrDuplicateOrderNumber) {
			return err
		}
		logger.Warn("order number collision, regenerating",
			slog.String("orderNumber", order.OrderNumber),
			slog.Int("attempt", attempt),
		)
	}
	return ErrOrderNumberExhausted
}

// CancelOrder возвращает остатки по всем позициям и переводит заказ в CANCELLED одной транзакцией
func (s *orderService) CancelOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.CancelOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("userID", userID))

	uow, err := s.tx.Begin(ctx)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := uow.Orders().LockOrder(ctx, orderID, &userID)
	if err != nil {
		s.rollback(logger, uow)
		logger.Warn("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	previous := order.Status
	if err := order.Cancel(); err != nil {
		s.rollback(logger, uow)
		logger.Warn("order cannot be cancelled", slog.String("status", previous.String()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := uow.Orders().GetOrderItems(ctx, []int64{order.ID})
	if err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to get order items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order items: %w", op, err)
	}
	order.Items = items[order.ID]

	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{VariantID: item.ProductVariantID, Quantity: item.Quantity})
	}
	if err := s.ledger.RestoreAll(ctx, uow.Variants(), lines); err != nil {
		s.rollback(logger, uow)
		return nil, fmt.Errorf("%s: failed to restore stock: %w", op, err)
	}

	if err := uow.Orders().UpdateStatus(ctx, order); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	if err := s.publish(ctx, uow, models.EventOrderCancelled, order, previous.String()); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to write outbox event", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to write outbox event: %w", op, err)
	}

	if err := uow.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order cancelled", slog.Int("items", len(order.Items)))
	return order, nil
}

// UpdateStatus - административная смена статуса без проверки переходов и без движения остатков.
// Номер отслеживания записывается, только если передан непустым.
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, status string, trackingNumber *string) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("status", status))

	uow, err := s.tx.Begin(ctx)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := uow.Orders().LockOrder(ctx, orderID, nil)
	if err != nil {
		s.rollback(logger, uow)
		logger.Warn("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	newStatus, err := models.ParseOrderStatus(status)
	if err != nil {
		s.rollback(logger, uow)
		logger.Warn("invalid status value")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	previous := order.Status
	order.Status = newStatus
	if trackingNumber != nil && *trackingNumber != "" {
		order.TrackingNumber = trackingNumber
	}

	if err := uow.Orders().UpdateStatus(ctx, order); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	items, err := uow.Orders().GetOrderItems(ctx, []int64{order.ID})
	if err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to get order items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order items: %w", op, err)
	}
	order.Items = items[order.ID]

	if err := s.publish(ctx, uow, models.EventOrderStatusChanged, order, previous.String()); err != nil {
		s.rollback(logger, uow)
		logger.Error("failed to write outbox event", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to write outbox event: %w", op, err)
	}

	if err := uow.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order status updated", slog.String("previous", previous.String()))
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orders.GetOrder(ctx, orderID, &userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID int64, page Page, status string) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"
	return s.list(ctx, op, &userID, page, status)
}

func (s *orderService) ListAllOrders(ctx context.Context, page Page, status string) ([]*models.Order, error) {
	const op = "service.OrderService.ListAllOrders"
	return s.list(ctx, op, nil, page, status)
}

// list: нераспознанный фильтр статуса игнорируется, возвращается выборка без фильтра
func (s *orderService) list(ctx context.Context, op string, userID *int64, page Page, status string) ([]*models.Order, error) {
	logger := s.log.With(slog.String("op", op))

	filter := storage.OrderFilter{UserID: userID, Limit: defaultPageLimit}
	if page.Skip > 0 {
		filter.Offset = uint64(page.Skip)
	}
	if page.Limit > 0 {
		filter.Limit = uint64(page.Limit)
	}
	if status != "" {
		if parsed, err := models.ParseOrderStatus(status); err == nil {
			filter.Status = &parsed
		} else {
			logger.Debug("ignoring unknown status filter", slog.String("status", status))
		}
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		logger.Error("failed to list orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachItems(ctx, orders); err != nil {
		logger.Error("failed to load order items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.orders.GetOrderItems(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}
	for _, o := range orders {
		o.Items = items[o.ID]
		if o.Items == nil {
			o.Items = []*models.OrderItem{}
		}
	}
	return nil
}

// publish пишет событие в outbox в той же транзакции
func (s *orderService) publish(ctx context.Context, uow storage.UnitOfWork, eventType string, order *models.Order, previous string) error {
	event := models.OrderEvent{
		EventID:        uuid.NewString(),
		Type:           eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status.String(),
		PreviousStatus: previous,
		TotalAmount:    order.TotalAmount.StringFixed(2),
		TrackingNumber: order.TrackingNumber,
		OccurredAt:     time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return uow.Outbox().Insert(ctx, &models.OutboxMessage{
		EventID:      event.EventID,
		ExchangeName: s.cfg.EventExchange,
		RoutingKey:   eventType,
		Payload:      payload,
		ContentType:  "application/json",
		MaxRetries:   s.cfg.EventMaxRetries,
	})
}
