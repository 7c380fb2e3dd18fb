package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog-api/internal/domain"
	"catalog-api/internal/middleware"
	"catalog-api/internal/repository"
	"catalog-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret"

// Mock repositories for testing
type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
	related  map[uuid.UUID][]uuid.UUID
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
		related:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	for _, existing := range m.products {
		if existing.SKU == product.SKU {
			return repository.ErrDuplicateSKU
		}
	}
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, exists := m.products[product.ID]; !exists {
		return repository.ErrProductNotFound
	}
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, exists := m.products[id]; !exists {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (m *mockProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	for _, product := range m.products {
		if product.SKU == sku {
			clone := *product
			return &clone, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter, skip, limit int) ([]*domain.Product, int, error) {
	var matched []*domain.Product
	for _, product := range m.products {
		if filter.CategoryID != nil && product.CategoryID != *filter.CategoryID {
			continue
		}
		clone := *product
		matched = append(matched, &clone)
	}

	total := len(matched)
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return matched[skip:end], total, nil
}

func (m *mockProductRepository) BulkUpdatePrices(ctx context.Context, categoryID uuid.UUID, multiplier decimal.Decimal) (int, error) {
	count := 0
	for _, product := range m.products {
		if product.CategoryID == categoryID {
			product.Price = product.Price.Mul(multiplier).Round(2)
			count++
		}
	}
	return count, nil
}

func (m *mockProductRepository) ListRelated(ctx context.Context, id uuid.UUID) ([]*domain.Product, error) {
	var related []*domain.Product
	for _, relatedID := range m.related[id] {
		if product, exists := m.products[relatedID]; exists {
			clone := *product
			related = append(related, &clone)
		}
	}
	return related, nil
}

func (m *mockProductRepository) SetRelated(ctx context.Context, id uuid.UUID, relatedIDs []uuid.UUID) error {
	m.related[id] = relatedIDs
	return nil
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{
		categories: make(map[uuid.UUID]*domain.Category),
	}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, existing := range m.categories {
		if existing.Slug == category.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	var categories []*domain.Category
	for _, category := range m.categories {
		categories = append(categories, category)
	}
	return categories, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, exists := m.categories[id]
	if !exists {
		return nil, repository.ErrCategoryNotFound
	}
	return category, nil
}

type mockReviewRepository struct {
	reviews []*domain.Review
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID, skip, limit int) ([]*domain.Review, int, error) {
	var matched []*domain.Review
	for _, review := range m.reviews {
		if review.ProductID == productID {
			matched = append(matched, review)
		}
	}
	total := len(matched)
	if skip >= total {
		return nil, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return matched[skip:end], total, nil
}

func (m *mockReviewRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int, error) {
	count := 0
	for _, review := range m.reviews {
		if review.ProductID == productID {
			count++
		}
	}
	return count, nil
}

type mockTagRepository struct {
	tags map[uuid.UUID][]*domain.Tag
}

func (m *mockTagRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Tag, error) {
	return m.tags[productID], nil
}

func (m *mockTagRepository) ReplaceProductTags(ctx context.Context, productID uuid.UUID, names []string) ([]*domain.Tag, error) {
	tags := make([]*domain.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, &domain.Tag{ID: uuid.New(), Name: name})
	}
	m.tags[productID] = tags
	return tags, nil
}

// newTestRouter wires the real service and real auth middleware over mock
// storage, the same shape the server assembles in production.
func newTestRouter(t *testing.T) (*chi.Mux, uuid.UUID) {
	t.Helper()

	logger := zap.NewNop()

	productRepo := newMockProductRepository()
	categoryRepo := newMockCategoryRepository()
	reviewRepo := &mockReviewRepository{}
	tagRepo := &mockTagRepository{tags: make(map[uuid.UUID][]*domain.Tag)}

	category := &domain.Category{
		ID:   uuid.New(),
		Name: "Electronics",
		Slug: "electronics",
	}
	category.CreatedAt = time.Now()
	if err := categoryRepo.Create(context.Background(), category); err != nil {
		t.Fatalf("Failed to seed category: %v", err)
	}

	productService := service.NewProductService(productRepo, categoryRepo, reviewRepo, tagRepo, logger)
	handler := NewProductHandler(productService, logger)

	router := chi.NewRouter()
	authMiddleware := middleware.AuthMiddleware(testJWTSecret, logger)
	adminMiddleware := middleware.RequireAdmin(logger)
	handler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	return router, category.ID
}

func mintToken(t *testing.T, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.New().String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func doRequest(router *chi.Mux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProductLifecycle(t *testing.T) {
	router, categoryID := newTestRouter(t)
	admin := mintToken(t, "admin")

	// Create
	rec := doRequest(router, http.MethodPost, "/api/products", admin, map[string]interface{}{
		"name":        "Wireless Mouse",
		"sku":         "mouse-001",
		"price":       "29.99",
		"quantity":    10,
		"category_id": categoryID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on create, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID    string          `json:"id"`
		SKU   string          `json:"sku"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if created.SKU != "MOUSE-001" {
		t.Errorf("Expected sku to be uppercased to MOUSE-001, got %s", created.SKU)
	}
	if string(created.Price) != `"29.99"` {
		t.Errorf(`Expected price "29.99", got %s`, created.Price)
	}

	// Read it back
	rec = doRequest(router, http.MethodGet, "/api/products/"+created.ID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on get, got %d", rec.Code)
	}

	// Patch an unrelated field; the price must come back byte-identical
	rec = doRequest(router, http.MethodPatch, "/api/products/"+created.ID, admin, map[string]interface{}{
		"quantity": 3,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on patch, got %d: %s", rec.Code, rec.Body.String())
	}

	var patched struct {
		Quantity int             `json:"quantity"`
		Price    json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatalf("Failed to decode patch response: %v", err)
	}
	if patched.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", patched.Quantity)
	}
	if string(patched.Price) != `"29.99"` {
		t.Errorf(`Expected untouched price "29.99", got %s`, patched.Price)
	}

	// Delete
	rec = doRequest(router, http.MethodDelete, "/api/products/"+created.ID, admin, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on delete, got %d", rec.Code)
	}

	// Gone
	rec = doRequest(router, http.MethodGet, "/api/products/"+created.ID, admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rec.Code)
	}
}

func TestNonAdminCannotMutate(t *testing.T) {
	router, categoryID := newTestRouter(t)
	customer := mintToken(t, "customer")

	rec := doRequest(router, http.MethodPost, "/api/products", customer, map[string]interface{}{
		"name":        "Sneaky Product",
		"sku":         "SNEAK-001",
		"price":       "9.99",
		"quantity":    1,
		"category_id": categoryID.String(),
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin create, got %d", rec.Code)
	}

	// Read access is still allowed
	rec = doRequest(router, http.MethodGet, "/api/products", customer, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for non-admin list, got %d", rec.Code)
	}
}

func TestCreateValidationFailuresReturn400(t *testing.T) {
	router, categoryID := newTestRouter(t)
	admin := mintToken(t, "admin")

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{
			"sku": "NO-NAME-001", "price": "9.99", "quantity": 1, "category_id": categoryID.String(),
		}},
		{"bad sku characters", map[string]interface{}{
			"name": "Bad SKU", "sku": "not a sku!", "price": "9.99", "quantity": 1, "category_id": categoryID.String(),
		}},
		{"negative quantity", map[string]interface{}{
			"name": "Negative", "sku": "NEG-001", "price": "9.99", "quantity": -1, "category_id": categoryID.String(),
		}},
		{"too many price decimals", map[string]interface{}{
			"name": "Precise", "sku": "PREC-001", "price": "9.999", "quantity": 1, "category_id": categoryID.String(),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/api/products", admin, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateDuplicateSKUReturns409(t *testing.T) {
	router, categoryID := newTestRouter(t)
	admin := mintToken(t, "admin")

	body := map[string]interface{}{
		"name":        "Original",
		"sku":         "TWIN-001",
		"price":       "9.99",
		"quantity":    1,
		"category_id": categoryID.String(),
	}

	if rec := doRequest(router, http.MethodPost, "/api/products", admin, body); rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on first create, got %d", rec.Code)
	}

	rec := doRequest(router, http.MethodPost, "/api/products", admin, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 on duplicate sku, got %d", rec.Code)
	}

	var payload middleware.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to decode conflict response: %v", err)
	}
	if payload.Error.Code != "DuplicateSKU" {
		t.Errorf("Expected DuplicateSKU code, got %s", payload.Error.Code)
	}
}

func TestUpdateNullNonNullableReturns422(t *testing.T) {
	router, categoryID := newTestRouter(t)
	admin := mintToken(t, "admin")

	rec := doRequest(router, http.MethodPost, "/api/products", admin, map[string]interface{}{
		"name":        "Nullable Target",
		"sku":         "NULL-001",
		"price":       "9.99",
		"quantity":    1,
		"category_id": categoryID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on create, got %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)

	req := httptest.NewRequest(http.MethodPatch, "/api/products/"+created.ID, bytes.NewBufferString(`{"price": null}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422 for null price, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload middleware.ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if payload.Error.Code != "NullField" {
		t.Errorf("Expected NullField code, got %s", payload.Error.Code)
	}
}

func TestListRejectsInvertedPriceRange(t *testing.T) {
	router, _ := newTestRouter(t)
	admin := mintToken(t, "admin")

	rec := doRequest(router, http.MethodGet, "/api/products?min_price=50&max_price=10", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for max_price below min_price, got %d", rec.Code)
	}
}

func TestListReturnsPaginationEnvelope(t *testing.T) {
	router, categoryID := newTestRouter(t)
	admin := mintToken(t, "admin")

	for i := 0; i < 3; i++ {
		rec := doRequest(router, http.MethodPost, "/api/products", admin, map[string]interface{}{
			"name":        fmt.Sprintf("Product %d", i),
			"sku":         fmt.Sprintf("PAGE-%03d", i),
			"price":       "9.99",
			"quantity":    1,
			"category_id": categoryID.String(),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201 on create %d, got %d", i, rec.Code)
		}
	}

	rec := doRequest(router, http.MethodGet, "/api/products?skip=0&limit=2", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on list, got %d", rec.Code)
	}

	var page ProductListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("Failed to decode list response: %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(page.Items))
	}
	if page.Total != 3 {
		t.Errorf("Expected total 3, got %d", page.Total)
	}
	if page.Skip != 0 || page.Limit != 2 {
		t.Errorf("Expected skip=0 limit=2 echoed, got skip=%d limit=%d", page.Skip, page.Limit)
	}
}

func TestPublishRequiresDescriptionOverHTTP(t *testing.T) {
	router, categoryID := newTestRouter(t)
	admin := mintToken(t, "admin")

	rec := doRequest(router, http.MethodPost, "/api/products", admin, map[string]interface{}{
		"name":        "Undescribed",
		"sku":         "NODESC-001",
		"price":       "9.99",
		"quantity":    1,
		"category_id": categoryID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on create, got %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(router, http.MethodPost, "/api/products/"+created.ID+"/publish", admin, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422 publishing without description, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPatch, "/api/products/"+created.ID, admin, map[string]interface{}{
		"description": "Words at last",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 adding description, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/api/products/"+created.ID+"/publish", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on publish, got %d: %s", rec.Code, rec.Body.String())
	}

	var published struct {
		IsPublished bool `json:"is_published"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &published); err != nil {
		t.Fatalf("Failed to decode publish response: %v", err)
	}
	if !published.IsPublished {
		t.Error("Expected is_published true after publish")
	}
}
