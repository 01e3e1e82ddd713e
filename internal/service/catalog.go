package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/storage"
)

var ErrNegativeStock = errors.New("stock quantity must not be negative")

// CatalogService - витрина и админское наполнение каталога.
// Поиск и фильтрация каталога здесь не поддерживаются.
type CatalogService interface {
	ListProducts(ctx context.Context, page Page) ([]*models.Product, error)
	GetProduct(ctx context.Context, slug string) (*models.Product, error)
	GetVariant(ctx context.Context, id int64) (*models.ProductVariant, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	CreateVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error)
	DeactivateProduct(ctx context.Context, id int64) error
}

type catalogService struct {
	log      *slog.Logger
	products storage.ProductStorage
	variants storage.VariantStorage
}

func NewCatalogService(log *slog.Logger, products storage.ProductStorage, variants storage.VariantStorage) CatalogService {
	return &catalogService{log: log, products: products, variants: variants}
}

func (s *catalogService) ListProducts(ctx context.Context, page Page) ([]*models.Product, error) {
	const op = "service.CatalogService.ListProducts"
	logger := s.log.With(slog.String("op", op))

	filter := storage.ProductFilter{Limit: defaultPageLimit}
	if page.Skip > 0 {
		filter.Offset = uint64(page.Skip)
	}
	if page.Limit > 0 {
		filter.Limit = uint64(page.Limit)
	}

	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		logger.Error("failed to list products", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachVariants(ctx, products); err != nil {
		logger.Error("failed to load variants", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	const op = "service.CatalogService.GetProduct"
	logger := s.log.With(slog.String("op", op), slog.String("slug", slug))

	product, err := s.products.GetProductBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, storage.ErrProductNotFound) {
			logger.Error("failed to get product", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachVariants(ctx, []*models.Product{product}); err != nil {
		logger.Error("failed to load variants", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// GetVariant: вариант снятого с витрины товара не виден покупателю
func (s *catalogService) GetVariant(ctx context.Context, id int64) (*models.ProductVariant, error) {
	const op = "service.CatalogService.GetVariant"

	variant, err := s.variants.GetVariant(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrVariantNotFound) {
			s.log.Error("failed to get variant", slog.String("op", op), slog.Int64("variantID", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !variant.Product.IsActive {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrVariantNotFound)
	}
	return variant, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	const op = "service.CatalogService.CreateProduct"
	logger := s.log.With(slog.String("op", op), slog.String("slug", product.Slug))

	product.IsActive = true
	if err := s.products.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, storage.ErrDuplicateSlug) {
			logger.Info("slug already taken")
		} else {
			logger.Error("failed to create product", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	product.Variants = []*models.ProductVariant{}

	logger.Info("product created", slog.Int64("productID", product.ID))
	return product, nil
}

func (s *catalogService) CreateVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error) {
	const op = "service.CatalogService.CreateVariant"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", variant.ProductID), slog.String("sku", variant.SKU))

	if variant.StockQuantity < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNegativeStock)
	}
	if err := s.products.CreateVariant(ctx, variant); err != nil {
		if errors.Is(err, storage.ErrDuplicateSKU) || errors.Is(err, storage.ErrProductNotFound) {
			logger.Info("variant rejected", slog.Any("error", err))
		} else {
			logger.Error("failed to create variant", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("variant created", slog.Int64("variantID", variant.ID), slog.Int("stock", variant.StockQuantity))
	return variant, nil
}

func (s *catalogService) DeactivateProduct(ctx context.Context, id int64) error {
	const op = "service.CatalogService.DeactivateProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if err := s.products.DeactivateProduct(ctx, id); err != nil {
		if !errors.Is(err, storage.ErrProductNotFound) {
			logger.Error("failed to deactivate product", slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("product deactivated")
	return nil
}

func (s *catalogService) attachVariants(ctx context.Context, products []*models.Product) error {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	byProduct, err := s.products.ListVariants(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range products {
		p.Variants = byProduct[p.ID]
		if p.Variants == nil {
			p.Variants = []*models.ProductVariant{}
		}
	}
	return nil
}
