package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSKU    = errors.New("product with this sku already exists")
	ErrProductInUse    = errors.New("product is referenced by order items")
)

// ProductFilter restricts List to a subset of the catalog. The zero value
// matches everything.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter, skip, limit int) ([]*domain.Product, int, error)
	BulkUpdatePrices(ctx context.Context, categoryID uuid.UUID, multiplier decimal.Decimal) (int, error)
	ListRelated(ctx context.Context, id uuid.UUID) ([]*domain.Product, error)
	SetRelated(ctx context.Context, id uuid.UUID, relatedIDs []uuid.UUID) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, sku, price, quantity, is_active, is_published, published_at, category_id, created_by, updated_by, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.SKU,
		&product.Price,
		&product.Quantity,
		&product.IsActive,
		&product.IsPublished,
		&product.PublishedAt,
		&product.CategoryID,
		&product.CreatedBy,
		&product.UpdatedBy,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// pgErrCode extracts the PostgreSQL error code, if any.
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Create inserts a new product using parameterized queries. A unique
// violation on the sku index is reported as ErrDuplicateSKU so concurrent
// creates racing past the service-level existence check still surface as a
// conflict rather than a plain database error.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.SKU,
		product.Price,
		product.Quantity,
		product.IsActive,
		product.IsPublished,
		product.PublishedAt,
		product.CategoryID,
		product.CreatedBy,
		product.UpdatedBy,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update persists every column of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, sku = $4, price = $5, quantity = $6,
		    is_active = $7, is_published = $8, published_at = $9, category_id = $10,
		    updated_by = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.SKU,
		product.Price,
		product.Quantity,
		product.IsActive,
		product.IsPublished,
		product.PublishedAt,
		product.CategoryID,
		product.UpdatedBy,
		product.UpdatedAt,
	)

	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product. Reviews, tag links and related links cascade in
// the schema; order items RESTRICT and surface as ErrProductInUse.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindBySKU retrieves a product by its stock-keeping unit
func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, sku))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by sku: %w", err)
	}

	return product, nil
}

// List retrieves a page of products ordered by creation time descending,
// together with the total count over the same filter. The count query shares
// the WHERE clause and arguments with the page query so the total never
// depends on skip/limit.
func (r *productRepository) List(ctx context.Context, filter ProductFilter, skip, limit int) ([]*domain.Product, int, error) {
	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	addClause := func(clause string, value interface{}) {
		if whereClause == "" {
			whereClause = "WHERE "
		} else {
			whereClause += " AND "
		}
		whereClause += fmt.Sprintf(clause, argIndex)
		args = append(args, value)
		argIndex++
	}

	if filter.CategoryID != nil {
		addClause("category_id = $%d", *filter.CategoryID)
	}
	if filter.Search != "" {
		addClause("name ILIKE $%d", "%"+filter.Search+"%")
	}
	if filter.MinPrice != nil {
		addClause("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		addClause("price <= $%d", *filter.MaxPrice)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+productColumns+`
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// BulkUpdatePrices multiplies the price of every product in a category in a
// single statement, rounding to the fixed two-decimal precision, and returns
// the number of rows touched.
func (r *productRepository) BulkUpdatePrices(ctx context.Context, categoryID uuid.UUID, multiplier decimal.Decimal) (int, error) {
	query := `
		UPDATE products
		SET price = ROUND(price * $2, 2), updated_at = NOW()
		WHERE category_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, categoryID, multiplier)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update prices: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// ListRelated retrieves the related products via an explicit junction join
func (r *productRepository) ListRelated(ctx context.Context, id uuid.UUID) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		JOIN related_products rp ON rp.related_id = products.id
		WHERE rp.product_id = $1
		ORDER BY products.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list related products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan related product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating related products: %w", err)
	}

	return products, nil
}

// SetRelated replaces the related-products set for a product in one
// transaction
func (r *productRepository) SetRelated(ctx context.Context, id uuid.UUID, relatedIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM related_products WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear related products: %w", err)
	}

	for _, relatedID := range relatedIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO related_products (product_id, related_id) VALUES ($1, $2)`,
			id, relatedID,
		)
		if err != nil {
			if pgErrCode(err) == pgForeignKeyViolation {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to insert related product: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit related products: %w", err)
	}

	return nil
}
