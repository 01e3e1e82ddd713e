package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/service"
	"github.com/shopspring/decimal"
)

var errNegativePrice = errors.New("price must not be negative")

type VariantResponse struct {
	ID            int64    `json:"id"`
	ProductID     int64    `json:"product_id"`
	Size          string   `json:"size"`
	Color         *string  `json:"color"`
	SKU           string   `json:"sku"`
	StockQuantity int      `json:"stock_quantity"`
	Price         *string  `json:"price"`
	ImageURLs     []string `json:"image_urls"`
	// UnitPrice - цена, по которой вариант попадёт в заказ
	UnitPrice string `json:"unit_price"`
}

type ProductResponse struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Team      string            `json:"team"`
	Sport     string            `json:"sport"`
	BasePrice string            `json:"base_price"`
	SalePrice *string           `json:"sale_price"`
	IsActive  bool              `json:"is_active"`
	Variants  []VariantResponse `json:"variants"`
}

type CreateProductRequest struct {
	Name      string  `json:"name" validate:"required,max=255"`
	Slug      string  `json:"slug" validate:"required,max=255"`
	Team      string  `json:"team" validate:"required,max=100"`
	Sport     string  `json:"sport" validate:"required,max=50"`
	BasePrice string  `json:"base_price" validate:"required,numeric"`
	SalePrice *string `json:"sale_price" validate:"omitempty,numeric"`
}

type CreateVariantRequest struct {
	Size          string   `json:"size" validate:"required,max=10"`
	Color         *string  `json:"color" validate:"omitempty,max=50"`
	SKU           string   `json:"sku" validate:"required,max=100"`
	StockQuantity *int     `json:"stock_quantity" validate:"required,min=0"`
	Price         *string  `json:"price" validate:"omitempty,numeric"`
	ImageURLs     []string `json:"image_urls" validate:"omitempty,dive,url"`
}

func money(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func parseMoney(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, errNegativePrice
	}
	return decimal.NewNullDecimal(d), nil
}

func toVariantResponse(v *models.ProductVariant) VariantResponse {
	images := []string(v.ImageURLs)
	if images == nil {
		images = []string{}
	}
	return VariantResponse{
		ID:            v.ID,
		ProductID:     v.ProductID,
		Size:          v.Size,
		Color:         v.Color,
		SKU:           v.SKU,
		StockQuantity: v.StockQuantity,
		Price:         money(v.Price),
		ImageURLs:     images,
		UnitPrice:     v.EffectivePrice().StringFixed(2),
	}
}

func toProductResponse(p *models.Product) ProductResponse {
	resp := ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Team:      p.Team,
		Sport:     p.Sport,
		BasePrice: p.BasePrice.StringFixed(2),
		SalePrice: money(p.SalePrice),
		IsActive:  p.IsActive,
		Variants:  make([]VariantResponse, 0, len(p.Variants)),
	}
	parent := *p
	parent.Variants = nil
	for _, v := range p.Variants {
		withParent := *v
		withParent.Product = parent
		resp.Variants = append(resp.Variants, toVariantResponse(&withParent))
	}
	return resp
}

// ListProductsHandler обрабатывает GET /api/products
func ListProductsHandler(log *slog.Logger, catalog service.CatalogService, paging Paging) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		page, err := parsePage(r, paging.Default, paging.Max)
		if err != nil {
			logger.Warn("invalid paging", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		products, err := catalog.ListProducts(r.Context(), page)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		resp := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, toProductResponse(p))
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// GetProductHandler обрабатывает GET /api/products/{slug}
func GetProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		product, err := catalog.GetProduct(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, toProductResponse(product))
	}
}

// GetVariantHandler обрабатывает GET /api/variants/{variantID}
func GetVariantHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetVariantHandler"
		logger := log.With(slog.String("op", op))

		id, err := idParam(r, "variantID")
		if err != nil {
			logger.Warn("invalid variant id", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		variant, err := catalog.GetVariant(r.Context(), id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, toVariantResponse(variant))
	}
}

// CreateProductHandler обрабатывает POST /api/admin/products
func CreateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req CreateProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		base, err := parseMoney(&req.BasePrice)
		if err != nil {
			logger.Warn("invalid base price", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}
		sale, err := parseMoney(req.SalePrice)
		if err != nil {
			logger.Warn("invalid sale price", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		product, err := catalog.CreateProduct(r.Context(), &models.Product{
			Name:      req.Name,
			Slug:      req.Slug,
			Team:      req.Team,
			Sport:     req.Sport,
			BasePrice: base.Decimal,
			SalePrice: sale,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, toProductResponse(product))
	}
}

// CreateVariantHandler обрабатывает POST /api/admin/products/{productID}/variants
func CreateVariantHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateVariantHandler"
		logger := log.With(slog.String("op", op))

		productID, err := idParam(r, "productID")
		if err != nil {
			logger.Warn("invalid product id", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var req CreateVariantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}
		price, err := parseMoney(req.Price)
		if err != nil {
			logger.Warn("invalid price", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		variant, err := catalog.CreateVariant(r.Context(), &models.ProductVariant{
			ProductID:     productID,
			Size:          req.Size,
			Color:         req.Color,
			SKU:           req.SKU,
			StockQuantity: *req.StockQuantity,
			Price:         price,
			ImageURLs:     models.StringList(req.ImageURLs),
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, toVariantResponse(variant))
	}
}

// DeactivateProductHandler обрабатывает DELETE /api/admin/products/{productID}
func DeactivateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeactivateProductHandler"
		logger := log.With(slog.String("op", op))

		productID, err := idParam(r, "productID")
		if err != nil {
			logger.Warn("invalid product id", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := catalog.DeactivateProduct(r.Context(), productID); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "product deactivated"})
	}
}
