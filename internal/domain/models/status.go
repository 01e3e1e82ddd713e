package models

import (
	"database/sql/driver"
	"fmt"
)

// OrderStatus - закрытый набор состояний заказа.
// В строку превращается только на границах: SQL и JSON.
type OrderStatus int

const (
	StatusPending OrderStatus = iota + 1
	StatusProcessing
	StatusShipped
	StatusDelivered
	StatusCancelled
)

var statusNames = map[OrderStatus]string{
	StatusPending:    "pending",
	StatusProcessing: "processing",
	StatusShipped:    "shipped",
	StatusDelivered:  "delivered",
	StatusCancelled:  "cancelled",
}

func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// Valid сообщает, входит ли значение в перечисление
func (s OrderStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Cancellable - отмена разрешена только до отгрузки
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// ParseOrderStatus разбирает строковое представление статуса
func ParseOrderStatus(raw string) (OrderStatus, error) {
	for status, name := range statusNames {
		if name == raw {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatusValue, raw)
}

// AllStatuses возвращает статусы в порядке жизненного цикла
func AllStatuses() []OrderStatus {
	return []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusValue, int(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value - запись статуса в колонку orders.status
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatusValue, int(s))
	}
	return s.String(), nil
}

// Scan - чтение статуса из колонки orders.status
func (s *OrderStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("unsupported type for OrderStatus: %T", src)
	}
}
