package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/jersey-shop/internal/domain/models"
)

// VariantStorage описывает работу с остатками вариантов товара
type VariantStorage interface {
	// GetVariant возвращает вариант вместе с родительским товаром
	GetVariant(ctx context.Context, id int64) (*models.ProductVariant, error)
	// DecrementStock атомарно списывает qty, если остатка хватает.
	// Возвращает вариант после списания, *models.InsufficientStockError или ErrVariantNotFound.
	DecrementStock(ctx context.Context, id int64, qty int) (*models.ProductVariant, error)
	// IncrementStock возвращает qty на склад, false - если варианта больше нет
	IncrementStock(ctx context.Context, id int64, qty int) (bool, error)
}

type variantRepository struct {
	db DBTX
}

func NewVariantRepository(db DBTX) VariantStorage {
	return &variantRepository{db: db}
}

const variantColumns = `v.id, v.product_id, v.size, v.color, v.sku, v.stock_quantity, v.price, v.image_urls,
	p.id, p.name, p.slug, p.team, p.sport, p.base_price, p.sale_price, p.is_active`

func scanVariant(row interface{ Scan(dest ...any) error }) (*models.ProductVariant, error) {
	v := &models.ProductVariant{}
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Size, &v.Color, &v.SKU, &v.StockQuantity, &v.Price, &v.ImageURLs,
		&v.Product.ID, &v.Product.Name, &v.Product.Slug, &v.Product.Team, &v.Product.Sport,
		&v.Product.BasePrice, &v.Product.SalePrice, &v.Product.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *variantRepository) GetVariant(ctx context.Context, id int64) (*models.ProductVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`
	v, err := scanVariant(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, mapError(err)
	}
	return v, nil
}

// DecrementStock - проверка и списание одним UPDATE, без отдельного чтения перед записью
func (r *variantRepository) DecrementStock(ctx context.Context, id int64, qty int) (*models.ProductVariant, error) {
	query := `UPDATE product_variants v
		SET stock_quantity = v.stock_quantity - $1
		FROM products p
		WHERE v.id = $2 AND p.id = v.product_id AND v.stock_quantity >= $1
		RETURNING ` + variantColumns
	v, err := scanVariant(r.db.QueryRowContext(ctx, query, qty, id))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError(err)
	}

	// строка не обновилась: либо варианта нет, либо остатка не хватает
	var available int
	err = r.db.QueryRowContext(ctx, "SELECT stock_quantity FROM product_variants WHERE id = $1", id).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, mapError(err)
	}
	return nil, &models.InsufficientStockError{VariantID: id, Requested: qty, Available: available}
}

func (r *variantRepository) IncrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE product_variants SET stock_quantity = stock_quantity + $1 WHERE id = $2", qty, id)
	if err != nil {
		return false, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}
