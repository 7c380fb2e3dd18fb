package repository

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-api/internal/domain"

	"github.com/google/uuid"
)

// TagRepository defines the interface for tag data access
type TagRepository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Tag, error)
	ReplaceProductTags(ctx context.Context, productID uuid.UUID, names []string) ([]*domain.Tag, error)
}

type tagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new instance of TagRepository
func NewTagRepository(db *sql.DB) TagRepository {
	return &tagRepository{db: db}
}

// ListByProduct retrieves the tags attached to a product via an explicit
// junction join
func (r *tagRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Tag, error) {
	query := `
		SELECT t.id, t.name
		FROM tags t
		JOIN product_tags pt ON pt.tag_id = t.id
		WHERE pt.product_id = $1
		ORDER BY t.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		tag := &domain.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}

// ReplaceProductTags replaces the tag set of a product in one transaction.
// Tags are created on first use; tag names are globally unique.
func (r *tagRepository) ReplaceProductTags(ctx context.Context, productID uuid.UUID, names []string) ([]*domain.Tag, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_tags WHERE product_id = $1`, productID); err != nil {
		return nil, fmt.Errorf("failed to clear product tags: %w", err)
	}

	tags := []*domain.Tag{}
	for _, name := range names {
		tag := &domain.Tag{}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (id, name)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name
		`, uuid.New(), name).Scan(&tag.ID, &tag.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert tag: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO product_tags (product_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			productID, tag.ID,
		)
		if err != nil {
			if pgErrCode(err) == pgForeignKeyViolation {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("failed to link tag: %w", err)
		}

		tags = append(tags, tag)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product tags: %w", err)
	}

	return tags, nil
}
