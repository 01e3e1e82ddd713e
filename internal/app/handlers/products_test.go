package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/jersey-shop/internal/app/handlers"
	"github.com/linemk/jersey-shop/internal/domain/models"
	"github.com/linemk/jersey-shop/internal/service"
	"github.com/linemk/jersey-shop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	product  *models.Product
	products []*models.Product
	variant  *models.ProductVariant
	err      error

	gotSlug       string
	gotID         int64
	gotPage       service.Page
	gotNewProduct *models.Product
	gotNewVariant *models.ProductVariant
}

var _ service.CatalogService = (*fakeCatalog)(nil)

func (f *fakeCatalog) ListProducts(ctx context.Context, page service.Page) ([]*models.Product, error) {
	f.gotPage = page
	return f.products, f.err
}

func (f *fakeCatalog) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	f.gotSlug = slug
	return f.product, f.err
}

func (f *fakeCatalog) GetVariant(ctx context.Context, id int64) (*models.ProductVariant, error) {
	f.gotID = id
	return f.variant, f.err
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	f.gotNewProduct = product
	if f.err != nil {
		return nil, f.err
	}
	product.ID = 5
	product.IsActive = true
	return product, nil
}

func (f *fakeCatalog) CreateVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error) {
	f.gotNewVariant = variant
	if f.err != nil {
		return nil, f.err
	}
	variant.ID = 40
	return variant, nil
}

func (f *fakeCatalog) DeactivateProduct(ctx context.Context, id int64) error {
	f.gotID = id
	return f.err
}

// withParam кладёт в контекст один параметр пути chi
func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleProduct() *models.Product {
	return &models.Product{
		ID:        3,
		Name:      "Home Jersey",
		Slug:      "home-jersey",
		Team:      "Bulls",
		Sport:     "basketball",
		BasePrice: decimal.RequireFromString("90"),
		SalePrice: decimal.NewNullDecimal(decimal.RequireFromString("75")),
		IsActive:  true,
		Variants: []*models.ProductVariant{
			{ID: 11, ProductID: 3, Size: "L", SKU: "HOME-L", StockQuantity: 4, Price: decimal.NewNullDecimal(decimal.RequireFromString("95"))},
		},
	}
}

func TestGetProductHandler(t *testing.T) {
	svc := &fakeCatalog{product: sampleProduct()}
	handler := handlers.GetProductHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("GET", "/api/products/home-jersey", nil), "slug", "home-jersey"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "home-jersey", svc.gotSlug)

	var resp handlers.ProductResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "90.00", resp.BasePrice)
	require.NotNil(t, resp.SalePrice)
	assert.Equal(t, "75.00", *resp.SalePrice)
	require.Len(t, resp.Variants, 1)
	// цена распродажи товара важнее цены варианта
	assert.Equal(t, "75.00", resp.Variants[0].UnitPrice)
	assert.Equal(t, 4, resp.Variants[0].StockQuantity)
	assert.Equal(t, []string{}, resp.Variants[0].ImageURLs)
}

func TestGetProductHandler_NotFound(t *testing.T) {
	handler := handlers.GetProductHandler(testLogger(), &fakeCatalog{err: fmt.Errorf("op: %w", storage.ErrProductNotFound)})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("GET", "/api/products/nope", nil), "slug", "nope"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListProductsHandler(t *testing.T) {
	svc := &fakeCatalog{products: []*models.Product{sampleProduct()}}
	handler := handlers.ListProductsHandler(testLogger(), svc, paging)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/products?skip=10&limit=5", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.Page{Skip: 10, Limit: 5}, svc.gotPage)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/products?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetVariantHandler(t *testing.T) {
	variant := sampleProduct().Variants[0]
	variant.Product = models.Product{ID: 3, BasePrice: decimal.RequireFromString("90"), IsActive: true}
	svc := &fakeCatalog{variant: variant}
	handler := handlers.GetVariantHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("GET", "/api/variants/11", nil), "variantID", "11"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(11), svc.gotID)
	var resp handlers.VariantResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "95.00", resp.UnitPrice)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("GET", "/api/variants/x", nil), "variantID", "x"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetVariantHandler_NotFound(t *testing.T) {
	handler := handlers.GetVariantHandler(testLogger(), &fakeCatalog{err: fmt.Errorf("op: %w", storage.ErrVariantNotFound)})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("GET", "/api/variants/11", nil), "variantID", "11"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateProductHandler(t *testing.T) {
	svc := &fakeCatalog{}
	handler := handlers.CreateProductHandler(testLogger(), svc)

	body := `{"name": "Home Jersey", "slug": "home-jersey", "team": "Bulls", "sport": "basketball", "base_price": "90.00"}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/admin/products", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, svc.gotNewProduct)
	assert.Equal(t, "90.00", svc.gotNewProduct.BasePrice.StringFixed(2))
	assert.False(t, svc.gotNewProduct.SalePrice.Valid)
}

func TestCreateProductHandler_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"missing slug", `{"name": "J", "team": "T", "sport": "S", "base_price": "1"}`, nil, http.StatusBadRequest},
		{"negative price", `{"name": "J", "slug": "j", "team": "T", "sport": "S", "base_price": "-1"}`, nil, http.StatusBadRequest},
		{"non numeric sale", `{"name": "J", "slug": "j", "team": "T", "sport": "S", "base_price": "1", "sale_price": "cheap"}`, nil, http.StatusBadRequest},
		{"slug taken", `{"name": "J", "slug": "j", "team": "T", "sport": "S", "base_price": "1"}`, fmt.Errorf("op: %w", storage.ErrDuplicateSlug), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.CreateProductHandler(testLogger(), &fakeCatalog{err: tt.err})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/admin/products", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestCreateVariantHandler(t *testing.T) {
	svc := &fakeCatalog{}
	handler := handlers.CreateVariantHandler(testLogger(), svc)

	body := `{"size": "L", "sku": "HOME-L", "stock_quantity": 0, "price": "95.00", "image_urls": ["https://cdn.example.com/l.png"]}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("POST", "/api/admin/products/5/variants", bytes.NewBufferString(body)), "productID", "5"))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, svc.gotNewVariant)
	assert.Equal(t, int64(5), svc.gotNewVariant.ProductID)
	assert.Equal(t, 0, svc.gotNewVariant.StockQuantity)
	assert.Equal(t, "95.00", svc.gotNewVariant.Price.Decimal.StringFixed(2))
}

func TestCreateVariantHandler_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"missing stock", `{"size": "L", "sku": "HOME-L"}`, nil, http.StatusBadRequest},
		{"negative stock", `{"size": "L", "sku": "HOME-L", "stock_quantity": -2}`, nil, http.StatusBadRequest},
		{"bad image url", `{"size": "L", "sku": "HOME-L", "stock_quantity": 1, "image_urls": ["not a url"]}`, nil, http.StatusBadRequest},
		{"sku taken", `{"size": "L", "sku": "HOME-L", "stock_quantity": 1}`, fmt.Errorf("op: %w", storage.ErrDuplicateSKU), http.StatusConflict},
		{"no product", `{"size": "L", "sku": "HOME-L", "stock_quantity": 1}`, fmt.Errorf("op: %w", storage.ErrProductNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.CreateVariantHandler(testLogger(), &fakeCatalog{err: tt.err})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, withParam(httptest.NewRequest("POST", "/api/admin/products/5/variants", bytes.NewBufferString(tt.body)), "productID", "5"))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestDeactivateProductHandler(t *testing.T) {
	svc := &fakeCatalog{}
	handler := handlers.DeactivateProductHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withParam(httptest.NewRequest("DELETE", "/api/admin/products/5", nil), "productID", "5"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(5), svc.gotID)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	handlers.HealthHandler(testLogger(), stubPinger{}).ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	handlers.HealthHandler(testLogger(), stubPinger{err: errors.New("connection refused")}).ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status": "unhealthy"}`, rr.Body.String())
}
