package models

import "time"

// типы событий заказа, они же routing key
const (
	EventOrderCreated       = "order.created"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxMessage - событие, записанное в одной транзакции с изменением заказа
type OutboxMessage struct {
	ID           int64
	EventID      string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    *string
	CreatedAt    time.Time
	NextRetryAt  time.Time
}

// OrderEvent - тело сообщения о заказе
type OrderEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	OrderID        int64     `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	UserID         int64     `json:"user_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	TotalAmount    string    `json:"total_amount"`
	TrackingNumber *string   `json:"tracking_number,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
