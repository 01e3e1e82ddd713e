package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/lib/pq"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSlug   = errors.New("product with this slug already exists")
	ErrDuplicateSKU    = errors.New("variant with this sku already exists")
)

// ProductFilter - страница активных товаров каталога
type ProductFilter struct {
	Offset uint64
	Limit  uint64
}

// ProductStorage - каталог: товары и их варианты
type ProductStorage interface {
	// ListProducts возвращает активные товары, новые первыми
	ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error)
	// GetProductBySlug ищет только среди активных товаров
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	// ListVariants загружает варианты сразу для нескольких товаров
	ListVariants(ctx context.Context, productIDs []int64) (map[int64][]*models.ProductVariant, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	// CreateVariant: повтор sku - ErrDuplicateSKU, нет товара - ErrProductNotFound
	CreateVariant(ctx context.Context, variant *models.ProductVariant) error
	// DeactivateProduct снимает товар с витрины, строки не удаляются
	DeactivateProduct(ctx context.Context, id int64) error
}

type productRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) ProductStorage {
	return &productRepository{db: db}
}

var productColumns = []string{"id", "name", "slug", "team", "sport", "base_price", "sale_price", "is_active"}

var variantOnlyColumns = []string{"id", "product_id", "size", "color", "sku", "stock_quantity", "price", "image_urls"}

const codeForeignKeyViolation = "23503"

func scanProduct(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	p := &models.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Team, &p.Sport, &p.BasePrice, &p.SalePrice, &p.IsActive); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	query, args, err := psql().Select(productColumns...).
		From("products").
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at DESC", "id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	query, args, err := psql().Select(productColumns...).
		From("products").
		Where(sq.Eq{"slug": slug}).
		Where(sq.Eq{"is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, mapError(err)
	}
	return p, nil
}

func (r *productRepository) ListVariants(ctx context.Context, productIDs []int64) (map[int64][]*models.ProductVariant, error) {
	result := make(map[int64][]*models.ProductVariant, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	query, args, err := psql().Select(variantOnlyColumns...).
		From("product_variants").
		Where(sq.Eq{"product_id": productIDs}).
		OrderBy("product_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		v := &models.ProductVariant{}
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.SKU, &v.StockQuantity, &v.Price, &v.ImageURLs); err != nil {
			return nil, err
		}
		result[v.ProductID] = append(result[v.ProductID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	query, args, err := psql().Insert("products").
		Columns("name", "slug", "team", "sport", "base_price", "sale_price", "is_active").
		Values(product.Name, product.Slug, product.Team, product.Sport, product.BasePrice, product.SalePrice, product.IsActive).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&product.ID); err != nil {
		// products.slug UNIQUE
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create product: %w", mapError(err))
	}
	return nil
}

func (r *productRepository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	query, args, err := psql().Insert("product_variants").
		Columns("product_id", "size", "color", "sku", "stock_quantity", "price", "image_urls").
		Values(variant.ProductID, variant.Size, variant.Color, variant.SKU, variant.StockQuantity, variant.Price, variant.ImageURLs).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&variant.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case codeUniqueViolation:
				return ErrDuplicateSKU
			case codeForeignKeyViolation:
				return ErrProductNotFound
			}
		}
		return fmt.Errorf("failed to create variant: %w", mapError(err))
	}
	return nil
}

func (r *productRepository) DeactivateProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
