package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/storage"
	"github.com/shopspring/decimal"
)

var errTxDone = errors.New("transaction already finished")

// memStore - хранилище в памяти. Транзакции выполняются строго по очереди:
// Begin захватывает мьютекс, Rollback восстанавливает снимок.
type memStore struct {
	txMu sync.Mutex

	variants    map[int64]*models.ProductVariant
	orders      map[int64]*models.Order
	items       map[int64][]*models.OrderItem
	outbox      []*models.OutboxMessage
	numbers     map[string]bool
	nextOrderID int64
	nextItemID  int64

	failOrderItems error
	// stockCalls: +id на списание, -id на возврат
	stockCalls []int64
}

func newMemStore() *memStore {
	return &memStore{
		variants: make(map[int64]*models.ProductVariant),
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64][]*models.OrderItem),
		numbers:  make(map[string]bool),
	}
}

type memSnapshot struct {
	variants    map[int64]models.ProductVariant
	orders      map[int64]models.Order
	items       map[int64][]*models.OrderItem
	outboxLen   int
	numbers     map[string]bool
	nextOrderID int64
	nextItemID  int64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		variants:    make(map[int64]models.ProductVariant, len(s.variants)),
		orders:      make(map[int64]models.Order, len(s.orders)),
		items:       make(map[int64][]*models.OrderItem, len(s.items)),
		outboxLen:   len(s.outbox),
		numbers:     make(map[string]bool, len(s.numbers)),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for id, v := range s.variants {
		snap.variants[id] = *v
	}
	for id, o := range s.orders {
		snap.orders[id] = *o
	}
	for id, its := range s.items {
		snap.items[id] = append([]*models.OrderItem(nil), its...)
	}
	for n := range s.numbers {
		snap.numbers[n] = true
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.variants = make(map[int64]*models.ProductVariant, len(snap.variants))
	for id, v := range snap.variants {
		v := v
		s.variants[id] = &v
	}
	s.orders = make(map[int64]*models.Order, len(snap.orders))
	for id, o := range snap.orders {
		o := o
		s.orders[id] = &o
	}
	s.items = snap.items
	s.outbox = s.outbox[:snap.outboxLen]
	s.numbers = snap.numbers
	s.nextOrderID = snap.nextOrderID
	s.nextItemID = snap.nextItemID
}

func (s *memStore) addVariant(id int64, stock int, basePrice string) *models.ProductVariant {
	v := &models.ProductVariant{
		ID:            id,
		ProductID:     1000 + id,
		Size:          "L",
		SKU:           "SKU-" + decimal.NewFromInt(id).String(),
		StockQuantity: stock,
		ImageURLs:     models.StringList{"jersey.png"},
		Product: models.Product{
			ID:        1000 + id,
			Name:      "Team Jersey",
			BasePrice: decimal.RequireFromString(basePrice),
			IsActive:  true,
		},
	}
	s.variants[id] = v
	return v
}

func (s *memStore) stock(id int64) int {
	return s.variants[id].StockQuantity
}

func (s *memStore) orderCount() int {
	return len(s.orders)
}

// TxManager

func (s *memStore) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	s.txMu.Lock()
	return &memUoW{store: s, snap: s.snapshot()}, nil
}

type memUoW struct {
	store *memStore
	snap  memSnapshot
	done  bool
}

func (u *memUoW) Variants() storage.VariantStorage { return memVariants{u.store} }
func (u *memUoW) Orders() storage.OrderStorage     { return memOrders{u.store} }
func (u *memUoW) Outbox() storage.OutboxStorage    { return memOutbox{u.store} }

func (u *memUoW) Commit() error {
	if u.done {
		return errTxDone
	}
	u.done = true
	u.store.txMu.Unlock()
	return nil
}

func (u *memUoW) Rollback() error {
	if u.done {
		return errTxDone
	}
	u.done = true
	u.store.restore(u.snap)
	u.store.txMu.Unlock()
	return nil
}

// VariantStorage

type memVariants struct{ s *memStore }

func (m memVariants) GetVariant(ctx context.Context, id int64) (*models.ProductVariant, error) {
	v, ok := m.s.variants[id]
	if !ok {
		return nil, storage.ErrVariantNotFound
	}
	cp := *v
	return &cp, nil
}

func (m memVariants) DecrementStock(ctx context.Context, id int64, qty int) (*models.ProductVariant, error) {
	v, ok := m.s.variants[id]
	if !ok {
		return nil, storage.ErrVariantNotFound
	}
	if v.StockQuantity < qty {
		return nil, &models.InsufficientStockError{VariantID: id, Requested: qty, Available: v.StockQuantity}
	}
	v.StockQuantity -= qty
	m.s.stockCalls = append(m.s.stockCalls, id)
	cp := *v
	return &cp, nil
}

func (m memVariants) IncrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	v, ok := m.s.variants[id]
	if !ok {
		return false, nil
	}
	v.StockQuantity += qty
	m.s.stockCalls = append(m.s.stockCalls, -id)
	return true, nil
}

// OrderStorage

type memOrders struct{ s *memStore }

var _ storage.OrderStorage = memOrders{}

func (m memOrders) CreateOrder(ctx context.Context, order *models.Order) error {
	if m.s.numbers[order.OrderNumber] {
		return storage.ErrDuplicateOrderNumber
	}
	m.s.nextOrderID++
	order.ID = m.s.nextOrderID
	order.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(order.ID) * time.Minute)
	order.UpdatedAt = order.CreatedAt
	m.s.numbers[order.OrderNumber] = true
	cp := *order
	cp.Items = nil
	m.s.orders[order.ID] = &cp
	return nil
}

func (m memOrders) CreateOrderItems(ctx context.Context, orderID int64, items []*models.OrderItem) error {
	if m.s.failOrderItems != nil {
		return m.s.failOrderItems
	}
	for _, item := range items {
		m.s.nextItemID++
		item.ID = m.s.nextItemID
		item.OrderID = orderID
		cp := *item
		m.s.items[orderID] = append(m.s.items[orderID], &cp)
	}
	return nil
}

func (m memOrders) GetOrder(ctx context.Context, id int64, userID *int64) (*models.Order, error) {
	o, ok := m.s.orders[id]
	if !ok || (userID != nil && o.UserID != *userID) {
		return nil, storage.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m memOrders) LockOrder(ctx context.Context, id int64, userID *int64) (*models.Order, error) {
	return m.GetOrder(ctx, id, userID)
}

func (m memOrders) GetOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]*models.OrderItem, error) {
	result := make(map[int64][]*models.OrderItem)
	for _, id := range orderIDs {
		for _, item := range m.s.items[id] {
			cp := *item
			result[id] = append(result[id], &cp)
		}
	}
	return result, nil
}

func (m memOrders) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.Order, error) {
	var all []*models.Order
	for _, o := range m.s.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		cp := *o
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := int(filter.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(filter.Limit)
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m memOrders) UpdateStatus(ctx context.Context, order *models.Order) error {
	o, ok := m.s.orders[order.ID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = order.Status
	o.TrackingNumber = order.TrackingNumber
	o.UpdatedAt = o.UpdatedAt.Add(time.Hour)
	order.UpdatedAt = o.UpdatedAt
	return nil
}

// OutboxStorage

type memOutbox struct{ s *memStore }

func (m memOutbox) Insert(ctx context.Context, msg *models.OutboxMessage) error {
	msg.ID = int64(len(m.s.outbox) + 1)
	m.s.outbox = append(m.s.outbox, msg)
	return nil
}

func (m memOutbox) ClaimPendingMessages(ctx context.Context, limit int, lease time.Duration) ([]*models.OutboxMessage, error) {
	return nil, nil
}

func (m memOutbox) Delete(ctx context.Context, id int64) error { return nil }

func (m memOutbox) UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	return nil
}

// seqNumbers выдаёт заранее заданные номера, затем уникальные
type seqNumbers struct {
	mu    sync.Mutex
	fixed []string
	n     int
}

func (g *seqNumbers) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.fixed) > 0 {
		next := g.fixed[0]
		g.fixed = g.fixed[1:]
		return next
	}
	g.n++
	return "ORD-20240101-" + decimal.NewFromInt(int64(g.n)).StringFixed(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
