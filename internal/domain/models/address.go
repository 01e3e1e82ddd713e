package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Address - адрес доставки или оплаты, хранится в JSONB
type Address struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address   string `json:"address" validate:"required,max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	ZipCode   string `json:"zip_code" validate:"required,max=20"`
	Country   string `json:"country" validate:"required,max=100"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Address: %T", src)
	}
	return json.Unmarshal(raw, a)
}

// NullAddress - необязательный адрес (billing_address может быть NULL)
type NullAddress struct {
	Address Address
	Valid   bool
}

func (n NullAddress) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Address.Value()
}

func (n *NullAddress) Scan(src any) error {
	if src == nil {
		n.Address, n.Valid = Address{}, false
		return nil
	}
	if err := n.Address.Scan(src); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr возвращает адрес или nil
func (n NullAddress) Ptr() *Address {
	if !n.Valid {
		return nil
	}
	a := n.Address
	return &a
}

// NewNullAddress оборачивает необязательный адрес
func NewNullAddress(a *Address) NullAddress {
	if a == nil {
		return NullAddress{}
	}
	return NullAddress{Address: *a, Valid: true}
}
