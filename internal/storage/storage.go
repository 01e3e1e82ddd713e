package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrVariantNotFound      = errors.New("product variant not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	// ErrResourceLocked - строка занята другой транзакцией, запрос можно повторить
	ErrResourceLocked = errors.New("resource is locked, please try again")
)

// DBTX - общий набор методов *sql.DB и *sql.Tx, репозитории работают с любым из них
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// коды ошибок postgres
const (
	codeUniqueViolation   = "23505"
	codeLockNotAvailable  = "55P03"
	codeDeadlockDetected  = "40P01"
	codeQueryCanceled     = "57014"
	codeSerializationFail = "40001"
)

// mapError превращает ошибки ожидания блокировок в ErrResourceLocked
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrResourceLocked, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeQueryCanceled, codeSerializationFail:
			return fmt.Errorf("%w: %w", ErrResourceLocked, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}
