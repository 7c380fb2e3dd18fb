package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"catalog-api/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	// Bring up the real schema, not a hand-written copy of it
	if err := goose.SetDialect("postgres"); err != nil {
		return dbContainer.Terminate, err
	}
	if err := goose.Up(testDB, "../../migrations"); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func createTestCategory(t *testing.T) *domain.Category {
	t.Helper()

	category := &domain.Category{
		ID:   uuid.New(),
		Name: "Test Category",
		Slug: "test-category-" + uuid.New().String(),
	}
	category.CreatedAt = time.Now()

	if err := NewCategoryRepository(testDB).Create(context.Background(), category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	return category
}

func newTestProduct(categoryID uuid.UUID, price decimal.Decimal) *domain.Product {
	product := &domain.Product{
		ID:         uuid.New(),
		Name:       "Test Product",
		SKU:        strings.ToUpper("SKU-" + uuid.New().String()),
		Price:      price,
		Quantity:   10,
		IsActive:   true,
		CategoryID: categoryID,
	}
	product.CreatedBy = uuid.New()
	product.CreatedAt = time.Now()
	return product
}

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, description string, priceCents int, quantity int) bool {
			ctx := context.Background()

			price := decimal.New(int64(priceCents), -2)
			product := newTestProduct(category.ID, price)
			product.Name = name
			product.Description = &description
			product.Quantity = quantity

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.ID != product.ID {
				t.Logf("FAIL: ID mismatch. Expected %s, got %s", product.ID, retrieved.ID)
				return false
			}
			if retrieved.Name != name {
				t.Logf("FAIL: Name mismatch. Expected %s, got %s", name, retrieved.Name)
				return false
			}
			if retrieved.Description == nil || *retrieved.Description != description {
				t.Logf("FAIL: Description mismatch. Expected %s, got %v", description, retrieved.Description)
				return false
			}
			if retrieved.SKU != product.SKU {
				t.Logf("FAIL: SKU mismatch. Expected %s, got %s", product.SKU, retrieved.SKU)
				return false
			}

			// Price is stored as NUMERIC(10,2) and must round-trip exactly
			if !retrieved.Price.Equal(price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", price, retrieved.Price)
				return false
			}

			if retrieved.Quantity != quantity {
				t.Logf("FAIL: Quantity mismatch. Expected %d, got %d", quantity, retrieved.Quantity)
				return false
			}
			if retrieved.CategoryID != category.ID {
				t.Logf("FAIL: CategoryID mismatch. Expected %s, got %s", category.ID, retrieved.CategoryID)
				return false
			}
			if retrieved.CreatedBy != product.CreatedBy {
				t.Logf("FAIL: CreatedBy mismatch. Expected %s, got %s", product.CreatedBy, retrieved.CreatedBy)
				return false
			}
			if retrieved.CreatedAt.IsZero() {
				t.Logf("FAIL: CreatedAt is zero")
				return false
			}
			if retrieved.UpdatedAt != nil {
				t.Logf("FAIL: UpdatedAt should be nil on a fresh row")
				return false
			}

			// Cleanup
			_ = productRepo.Delete(ctx, product.ID)

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),       // name
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`), // description
		gen.IntRange(1, 999999),                    // price in cents
		gen.IntRange(0, 1000),                      // quantity
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ProductDeletionRemovesFromCatalog(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t)

	properties := gopter.NewProperties(nil)

	properties.Property("deleting a product makes it not retrievable", prop.ForAll(
		func(priceCents int, quantity int) bool {
			ctx := context.Background()

			product := newTestProduct(category.ID, decimal.New(int64(priceCents), -2))
			product.Quantity = quantity

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			if _, err := productRepo.FindByID(ctx, product.ID); err != nil {
				t.Logf("FAIL: Product should exist before deletion: %v", err)
				return false
			}

			if err := productRepo.Delete(ctx, product.ID); err != nil {
				t.Logf("FAIL: Failed to delete product: %v", err)
				return false
			}

			if _, err := productRepo.FindByID(ctx, product.ID); err != ErrProductNotFound {
				t.Logf("FAIL: Expected ErrProductNotFound after deletion, got: %v", err)
				return false
			}

			return true
		},
		gen.IntRange(1, 999999), // price in cents
		gen.IntRange(0, 1000),   // quantity
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDuplicateSKUIsRejectedByConstraint(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t)
	ctx := context.Background()

	first := newTestProduct(category.ID, decimal.New(1999, -2))
	if err := productRepo.Create(ctx, first); err != nil {
		t.Fatalf("Failed to create first product: %v", err)
	}
	defer productRepo.Delete(ctx, first.ID)

	second := newTestProduct(category.ID, decimal.New(2999, -2))
	second.SKU = first.SKU

	if err := productRepo.Create(ctx, second); err != ErrDuplicateSKU {
		t.Errorf("Expected ErrDuplicateSKU, got: %v", err)
	}
}

func TestListPaginationPartitionsResults(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t)
	ctx := context.Background()

	const totalProducts = 25

	created := make([]uuid.UUID, 0, totalProducts)
	for i := 0; i < totalProducts; i++ {
		product := newTestProduct(category.ID, decimal.New(int64(100+i), -2))
		product.Name = fmt.Sprintf("Paginated Product %02d", i)
		// Spread creation times so the created_at ordering is total
		product.CreatedAt = time.Now().Add(time.Duration(i) * time.Millisecond)

		if err := productRepo.Create(ctx, product); err != nil {
			t.Fatalf("Failed to create product %d: %v", i, err)
		}
		created = append(created, product.ID)
	}
	defer func() {
		for _, id := range created {
			_ = productRepo.Delete(ctx, id)
		}
	}()

	filter := ProductFilter{CategoryID: &category.ID}

	seen := make(map[uuid.UUID]bool)
	expectedPageSizes := []int{10, 10, 5}

	for page, expectedSize := range expectedPageSizes {
		skip := page * 10
		products, total, err := productRepo.List(ctx, filter, skip, 10)
		if err != nil {
			t.Fatalf("List failed at skip=%d: %v", skip, err)
		}

		// The total reflects the whole filtered set regardless of the page
		if total != totalProducts {
			t.Errorf("Expected total %d at skip=%d, got %d", totalProducts, skip, total)
		}
		if len(products) != expectedSize {
			t.Errorf("Expected %d products at skip=%d, got %d", expectedSize, skip, len(products))
		}

		for _, product := range products {
			if seen[product.ID] {
				t.Errorf("Product %s appeared on more than one page", product.ID)
			}
			seen[product.ID] = true
		}
	}

	if len(seen) != totalProducts {
		t.Errorf("Pages covered %d distinct products, expected %d", len(seen), totalProducts)
	}

	// An overshooting skip yields an empty page with the same total
	products, total, err := productRepo.List(ctx, filter, totalProducts+10, 10)
	if err != nil {
		t.Fatalf("List failed beyond the end: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("Expected empty page beyond the end, got %d products", len(products))
	}
	if total != totalProducts {
		t.Errorf("Expected total %d beyond the end, got %d", totalProducts, total)
	}
}

func TestBulkUpdatePricesRoundsAndCounts(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t)
	other := createTestCategory(t)
	ctx := context.Background()

	// 10.99 * 1.15 = 12.6385 which must round to 12.64
	inCategory := newTestProduct(category.ID, decimal.New(1099, -2))
	if err := productRepo.Create(ctx, inCategory); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	defer productRepo.Delete(ctx, inCategory.ID)

	outside := newTestProduct(other.ID, decimal.New(500, -2))
	if err := productRepo.Create(ctx, outside); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}
	defer productRepo.Delete(ctx, outside.ID)

	count, err := productRepo.BulkUpdatePrices(ctx, category.ID, decimal.New(115, -2))
	if err != nil {
		t.Fatalf("BulkUpdatePrices failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 affected row, got %d", count)
	}

	updated, err := productRepo.FindByID(ctx, inCategory.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve updated product: %v", err)
	}
	if want := decimal.New(1264, -2); !updated.Price.Equal(want) {
		t.Errorf("Expected price %s after bulk update, got %s", want, updated.Price)
	}

	untouched, err := productRepo.FindByID(ctx, outside.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve untouched product: %v", err)
	}
	if want := decimal.New(500, -2); !untouched.Price.Equal(want) {
		t.Errorf("Product outside the category changed price: %s", untouched.Price)
	}
}

func TestSetRelatedReplacesTheWholeSet(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t)
	ctx := context.Background()

	base := newTestProduct(category.ID, decimal.New(999, -2))
	relatedA := newTestProduct(category.ID, decimal.New(999, -2))
	relatedB := newTestProduct(category.ID, decimal.New(999, -2))

	for _, product := range []*domain.Product{base, relatedA, relatedB} {
		if err := productRepo.Create(ctx, product); err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}
		defer productRepo.Delete(ctx, product.ID)
	}

	if err := productRepo.SetRelated(ctx, base.ID, []uuid.UUID{relatedA.ID}); err != nil {
		t.Fatalf("SetRelated failed: %v", err)
	}

	if err := productRepo.SetRelated(ctx, base.ID, []uuid.UUID{relatedB.ID}); err != nil {
		t.Fatalf("SetRelated failed on replacement: %v", err)
	}

	related, err := productRepo.ListRelated(ctx, base.ID)
	if err != nil {
		t.Fatalf("ListRelated failed: %v", err)
	}
	if len(related) != 1 || related[0].ID != relatedB.ID {
		t.Errorf("Expected related set to be replaced with exactly %s, got %d entries", relatedB.ID, len(related))
	}

	// Clearing with an empty set leaves nothing behind
	if err := productRepo.SetRelated(ctx, base.ID, nil); err != nil {
		t.Fatalf("SetRelated failed on clear: %v", err)
	}
	related, err = productRepo.ListRelated(ctx, base.ID)
	if err != nil {
		t.Fatalf("ListRelated failed after clear: %v", err)
	}
	if len(related) != 0 {
		t.Errorf("Expected empty related set, got %d entries", len(related))
	}
}
