package repository

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-api/internal/domain"

	"github.com/google/uuid"
)

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	ListByProduct(ctx context.Context, productID uuid.UUID, skip, limit int) ([]*domain.Review, int, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int, error)
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Create inserts a new review using parameterized queries
func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, rating, comment, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		review.ID,
		review.ProductID,
		review.Rating,
		review.Comment,
		review.CreatedBy,
		review.CreatedAt,
	)

	if err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// ListByProduct retrieves a page of reviews for a product, newest first,
// with the product-wide total
func (r *reviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID, skip, limit int) ([]*domain.Review, int, error) {
	total, err := r.CountByProduct(ctx, productID)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, product_id, rating, comment, created_by, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, productID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review := &domain.Review{}
		err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.Rating,
			&review.Comment,
			&review.CreatedBy,
			&review.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, total, nil
}

// CountByProduct returns the number of reviews attached to a product
func (r *reviewRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = $1`, productID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return total, nil
}
