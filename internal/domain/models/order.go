package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order представляет заказ покупателя вместе с позициями
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int64           `json:"user_id"`
	Status          OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  *Address        `json:"billing_address,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	TrackingNumber  *string         `json:"tracking_number,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []*OrderItem    `json:"items"`
}

// PaymentStatusPending - начальный статус оплаты, оплата вне зоны ответственности ядра
const PaymentStatusPending = "pending"

// Cancel переводит заказ в CANCELLED, если текущее состояние это допускает
func (o *Order) Cancel() error {
	if !o.Status.Cancellable() {
		return ErrInvalidTransition
	}
	o.Status = StatusCancelled
	return nil
}

// OrderItem - снимок товара на момент оформления заказа, после создания не меняется
type OrderItem struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	ProductID        int64           `json:"product_id"`
	ProductVariantID int64           `json:"product_variant_id"`
	ProductName      string          `json:"product_name"`
	ProductImage     *string         `json:"product_image,omitempty"`
	Size             string          `json:"size"`
	Color            *string         `json:"color,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
}
