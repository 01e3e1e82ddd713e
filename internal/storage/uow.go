package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// UnitOfWork - репозитории, привязанные к одной транзакции
type UnitOfWork interface {
	Variants() VariantStorage
	Orders() OrderStorage
	Outbox() OutboxStorage
	Commit() error
	Rollback() error
}

// TxManager открывает транзакции
type TxManager interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

type txManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) TxManager {
	return &txManager{db: db}
}

func (m *txManager) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}
	return &unitOfWork{
		tx:       tx,
		variants: NewVariantRepository(tx),
		orders:   NewOrderRepository(tx),
		outbox:   NewOutboxRepository(tx),
	}, nil
}

type unitOfWork struct {
	tx       *sql.Tx
	variants VariantStorage
	orders   OrderStorage
	outbox   OutboxStorage
}

func (u *unitOfWork) Variants() VariantStorage { return u.variants }
func (u *unitOfWork) Orders() OrderStorage     { return u.orders }
func (u *unitOfWork) Outbox() OutboxStorage    { return u.outbox }

func (u *unitOfWork) Commit() error {
	return mapError(u.tx.Commit())
}

func (u *unitOfWork) Rollback() error {
	return u.tx.Rollback()
}
