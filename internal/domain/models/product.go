package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product - карточка товара каталога (джерси)
type Product struct {
	ID        int64
	Name      string
	Slug      string
	Team      string
	Sport     string
	BasePrice decimal.Decimal
	SalePrice decimal.NullDecimal
	IsActive  bool
	Variants  []*ProductVariant
}

// ProductVariant - конкретный размер/цвет товара со своим остатком
type ProductVariant struct {
	ID            int64
	ProductID     int64
	Size          string
	Color         *string
	SKU           string
	StockQuantity int
	Price         decimal.NullDecimal
	ImageURLs     StringList
	Product       Product
}

// EffectivePrice: цена распродажи товара, иначе цена варианта, иначе базовая цена.
// Нулевая цена распродажи или варианта считается незаданной.
func (v *ProductVariant) EffectivePrice() decimal.Decimal {
	if v.Product.SalePrice.Valid && !v.Product.SalePrice.Decimal.IsZero() {
		return v.Product.SalePrice.Decimal
	}
	if v.Price.Valid && !v.Price.Decimal.IsZero() {
		return v.Price.Decimal
	}
	return v.Product.BasePrice
}

// PrimaryImage возвращает первую картинку варианта
func (v *ProductVariant) PrimaryImage() *string {
	if len(v.ImageURLs) == 0 {
		return nil
	}
	img := v.ImageURLs[0]
	return &img
}

// StringList - JSON-массив строк (колонка image_urls)
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
}
