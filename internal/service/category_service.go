package service

import (
	"context"
	"fmt"
	"time"

	"catalog-api/internal/domain"
	"catalog-api/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryCreate carries the validated input for creating a category.
type CategoryCreate struct {
	Name        string
	Slug        string
	Description *string
	ParentID    *uuid.UUID
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	Create(ctx context.Context, data CategoryCreate) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository, logger *zap.Logger) CategoryService {
	return &categoryService{categoryRepo: categoryRepo, logger: logger}
}

// Create persists a new category. The parent, when given, must exist; a new
// node has no descendants, so accepting the parent only at creation keeps
// the tree acyclic.
func (s *categoryService) Create(ctx context.Context, data CategoryCreate) (*domain.Category, error) {
	if data.ParentID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *data.ParentID); err != nil {
			if err == repository.ErrCategoryNotFound {
				return nil, &domain.ValidationError{
					Code:    domain.CodeInvalidParent,
					Message: fmt.Sprintf("parent category %s not found", *data.ParentID),
					Details: map[string]interface{}{"parent_id": data.ParentID.String()},
				}
			}
			return nil, fmt.Errorf("failed to validate parent category: %w", err)
		}
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        data.Name,
		Slug:        data.Slug,
		Description: data.Description,
		ParentID:    data.ParentID,
		Timestamps:  domain.Timestamps{CreatedAt: time.Now()},
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if err == repository.ErrCategoryAlreadyExists {
			return nil, &domain.ConflictError{
				Code:    domain.CodeDuplicateSlug,
				Message: fmt.Sprintf("category with slug %s already exists", data.Slug),
				Details: map[string]interface{}{"slug": data.Slug},
			}
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("category created",
		zap.String("category_id", category.ID.String()),
		zap.String("slug", category.Slug),
	)

	return category, nil
}

// List retrieves all categories
func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

// GetByID retrieves a category or fails with a not-found error
func (s *categoryService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrCategoryNotFound {
			return nil, &domain.NotFoundError{Resource: "category", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}
