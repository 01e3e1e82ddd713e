// Package inventory резервирует и возвращает остатки вариантов товара.
// Ledger не открывает транзакций сам: ему передают хранилище, привязанное к транзакции вызывающего.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/linemk/jersey-shop/internal/storage"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Line - запрошенная позиция: вариант и количество
type Line struct {
	VariantID int64
	Quantity  int
}

// Reservation - снимок варианта на момент списания
type Reservation struct {
	VariantID   int64
	ProductID   int64
	ProductName string
	Image       *string
	Size        string
	Color       *string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type Ledger struct {
	log *slog.Logger
}

func NewLedger(log *slog.Logger) *Ledger {
	return &Ledger{log: log}
}

// Reserve списывает qty с варианта и возвращает снимок цены
func (l *Ledger) Reserve(ctx context.Context, variants storage.VariantStorage, variantID int64, qty int) (*Reservation, error) {
	const op = "inventory.Ledger.Reserve"

	if qty <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	v, err := variants.DecrementStock(ctx, variantID, qty)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Reservation{
		VariantID:   v.ID,
		ProductID:   v.ProductID,
		ProductName: v.Product.Name,
		Image:       v.PrimaryImage(),
		Size:        v.Size,
		Color:       v.Color,
		Quantity:    qty,
		UnitPrice:   v.EffectivePrice(),
	}, nil
}

// ReserveAll резервирует все позиции; при первой ошибке возвращает её,
// откат уже сделанных списаний - забота транзакции вызывающего.
// Варианты блокируются по возрастанию id, чтобы параллельные заказы не ловили deadlock.
// Результат идёт в порядке lines.
func (l *Ledger) ReserveAll(ctx context.Context, variants storage.VariantStorage, lines []Line) ([]*Reservation, error) {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].VariantID < lines[order[b]].VariantID
	})

	result := make([]*Reservation, len(lines))
	for _, i := range order {
		r, err := l.Reserve(ctx, variants, lines[i].VariantID, lines[i].Quantity)
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// RestoreAll возвращает остатки по всем позициям в том же порядке блокировок, что и ReserveAll
func (l *Ledger) RestoreAll(ctx context.Context, variants storage.VariantStorage, lines []Line) error {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].VariantID < sorted[b].VariantID
	})

	for _, line := range sorted {
		if err := l.Restore(ctx, variants, line.VariantID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Restore возвращает qty на склад. Удалённый вариант пропускается с предупреждением.
// Ошибка возвращается только при сбое хранилища.
func (l *Ledger) Restore(ctx context.Context, variants storage.VariantStorage, variantID int64, qty int) error {
	const op = "inventory.Ledger.Restore"
	logger := l.log.With(slog.String("op", op), slog.Int64("variantID", variantID), slog.Int("quantity", qty))

	found, err := variants.IncrementStock(ctx, variantID, qty)
	if err != nil {
		logger.Error("failed to restore stock", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		logger.Warn("variant no longer exists, stock not restored")
	}
	return nil
}
