package service

import (
	"context"
	"fmt"
	"time"

	"catalog-api/internal/domain"
	"catalog-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MinimumPrice is the lowest price the catalog accepts.
var MinimumPrice = decimal.RequireFromString("0.01")

// ProductCreate carries the validated input for creating a product.
type ProductCreate struct {
	Name        string
	Description *string
	SKU         string
	Price       decimal.Decimal
	Quantity    int
	CategoryID  uuid.UUID
}

// ProductService defines the interface for product business logic
type ProductService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context, filter repository.ProductFilter, skip, limit int) ([]*domain.Product, int, error)
	Create(ctx context.Context, data ProductCreate, createdBy uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, data *ProductUpdate, updatedBy uuid.UUID) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Publish(ctx context.Context, id, publishedBy uuid.UUID) (*domain.Product, error)
	BulkUpdatePrices(ctx context.Context, categoryID uuid.UUID, multiplier decimal.Decimal) (int, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*domain.ProductDetails, error)
	ListReviews(ctx context.Context, productID uuid.UUID, skip, limit int) ([]*domain.Review, int, error)
	AddReview(ctx context.Context, productID uuid.UUID, rating int, comment *string, createdBy uuid.UUID) (*domain.Review, error)
	ListRelated(ctx context.Context, id uuid.UUID) ([]*domain.Product, error)
	SetRelated(ctx context.Context, id uuid.UUID, relatedIDs []uuid.UUID) ([]*domain.Product, error)
	ReplaceTags(ctx context.Context, id uuid.UUID, names []string) ([]*domain.Tag, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	reviewRepo   repository.ReviewRepository
	tagRepo      repository.TagRepository
	logger       *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	reviewRepo repository.ReviewRepository,
	tagRepo repository.TagRepository,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		reviewRepo:   reviewRepo,
		tagRepo:      tagRepo,
		logger:       logger,
	}
}

// GetByID retrieves a product or fails with a not-found error
func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// GetBySKU retrieves a product by sku. A miss is an empty result, not an
// error condition.
func (s *productService) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.productRepo.FindBySKU(ctx, sku)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product by sku: %w", err)
	}
	return product, nil
}

// List retrieves a page of products plus the filter-wide total
func (s *productService) List(ctx context.Context, filter repository.ProductFilter, skip, limit int) ([]*domain.Product, int, error) {
	return s.productRepo.List(ctx, filter, skip, limit)
}

// Create persists a new product after the business checks: the price floor
// and sku uniqueness. The sku existence check gives a friendly conflict
// payload; the database unique constraint is the authority when two creates
// race.
func (s *productService) Create(ctx context.Context, data ProductCreate, createdBy uuid.UUID) (*domain.Product, error) {
	if data.Price.LessThan(MinimumPrice) {
		return nil, &domain.ValidationError{
			Code:    domain.CodeInvalidPrice,
			Message: fmt.Sprintf("price must be at least %s", MinimumPrice.StringFixed(2)),
		}
	}

	if err := s.validateCategory(ctx, data.CategoryID); err != nil {
		return nil, err
	}

	existing, err := s.GetBySKU(ctx, data.SKU)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing sku: %w", err)
	}
	if existing != nil {
		return nil, &domain.ConflictError{
			Code:    domain.CodeDuplicateSKU,
			Message: fmt.Sprintf("product with sku %s already exists", data.SKU),
			Details: map[string]interface{}{
				"sku":         data.SKU,
				"existing_id": existing.ID.String(),
			},
		}
	}

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        data.Name,
		Description: data.Description,
		SKU:         data.SKU,
		Price:       data.Price,
		Quantity:    data.Quantity,
		IsActive:    true,
		CategoryID:  data.CategoryID,
		Audit:       domain.Audit{CreatedBy: createdBy},
		Timestamps:  domain.Timestamps{CreatedAt: time.Now()},
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		if err == repository.ErrDuplicateSKU {
			return nil, &domain.ConflictError{
				Code:    domain.CodeDuplicateSKU,
				Message: fmt.Sprintf("product with sku %s already exists", data.SKU),
				Details: map[string]interface{}{"sku": data.SKU},
			}
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.String("created_by", createdBy.String()),
	)

	return product, nil
}

// Update applies a partial update. Only fields the caller supplied are
// touched; supplied-as-null clears nullable fields and is rejected for
// non-nullable ones.
func (s *productService) Update(ctx context.Context, id uuid.UUID, data *ProductUpdate, updatedBy uuid.UUID) (*domain.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data.Has("name") {
		if data.Name == nil {
			return nil, nullFieldError("name")
		}
		product.Name = *data.Name
	}
	if data.Has("description") {
		product.Description = data.Description
	}
	if data.Has("price") {
		if data.Price == nil {
			return nil, nullFieldError("price")
		}
		if data.Price.LessThan(MinimumPrice) {
			return nil, &domain.ValidationError{
				Code:    domain.CodeInvalidPrice,
				Message: fmt.Sprintf("price must be at least %s", MinimumPrice.StringFixed(2)),
			}
		}
		product.Price = *data.Price
	}
	if data.Has("quantity") {
		if data.Quantity == nil {
			return nil, nullFieldError("quantity")
		}
		product.Quantity = *data.Quantity
	}
	if data.Has("is_active") {
		if data.IsActive == nil {
			return nil, nullFieldError("is_active")
		}
		product.IsActive = *data.IsActive
	}
	if data.Has("category_id") {
		if data.CategoryID == nil {
			return nil, nullFieldError("category_id")
		}
		if err := s.validateCategory(ctx, *data.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = *data.CategoryID
	}

	now := time.Now()
	product.UpdatedBy = &updatedBy
	product.UpdatedAt = &now

	if err := s.productRepo.Update(ctx, product); err != nil {
		if err == repository.ErrProductNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("product updated",
		zap.String("product_id", id.String()),
		zap.Strings("updated_fields", data.Fields()),
		zap.String("updated_by", updatedBy.String()),
	)

	return product, nil
}

// Delete removes a product. Dependent reviews cascade in the schema; a
// product referenced by order items cannot be removed.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		switch err {
		case repository.ErrProductNotFound:
			return &domain.NotFoundError{Resource: "product", ID: id.String()}
		case repository.ErrProductInUse:
			return &domain.ConflictError{
				Code:    domain.CodeProductInUse,
				Message: "product is referenced by existing orders",
				Details: map[string]interface{}{"product_id": id.String()},
			}
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

// Publish makes a product visible to customers. A product without a
// description cannot be published.
func (s *productService) Publish(ctx context.Context, id, publishedBy uuid.UUID) (*domain.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.HasDescription() {
		return nil, &domain.ValidationError{
			Code:    domain.CodeMissingDescription,
			Message: "product must have a description before publishing",
		}
	}

	now := time.Now()
	product.IsPublished = true
	product.PublishedAt = &now
	product.UpdatedBy = &publishedBy
	product.UpdatedAt = &now

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to publish product: %w", err)
	}

	s.logger.Info("product published",
		zap.String("product_id", id.String()),
		zap.String("published_by", publishedBy.String()),
	)

	return product, nil
}

// BulkUpdatePrices multiplies every price in a category in a single
// statement. A multiplier at or below zero would break the price floor for
// the whole category and is rejected up front.
func (s *productService) BulkUpdatePrices(ctx context.Context, categoryID uuid.UUID, multiplier decimal.Decimal) (int, error) {
	if !multiplier.IsPositive() {
		return 0, &domain.ValidationError{
			Code:    domain.CodeInvalidMultiplier,
			Message: "price multiplier must be greater than zero",
		}
	}

	if err := s.validateCategory(ctx, categoryID); err != nil {
		return 0, err
	}

	count, err := s.productRepo.BulkUpdatePrices(ctx, categoryID, multiplier)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update prices: %w", err)
	}

	s.logger.Info("bulk prices updated",
		zap.String("category_id", categoryID.String()),
		zap.String("multiplier", multiplier.String()),
		zap.Int("count", count),
	)

	return count, nil
}

// GetDetails returns the eager-loaded product view. Every relation is an
// explicit query; nothing is fetched behind attribute access.
func (s *productService) GetDetails(ctx context.Context, id uuid.UUID) (*domain.ProductDetails, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category, err := s.categoryRepo.FindByID(ctx, product.CategoryID)
	if err != nil && err != repository.ErrCategoryNotFound {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}

	tags, err := s.tagRepo.ListByProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	reviewCount, err := s.reviewRepo.CountByProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	return &domain.ProductDetails{
		Product:     product,
		Category:    category,
		Tags:        tags,
		ReviewCount: reviewCount,
	}, nil
}

// ListReviews retrieves a page of reviews for an existing product
func (s *productService) ListReviews(ctx context.Context, productID uuid.UUID, skip, limit int) ([]*domain.Review, int, error) {
	if _, err := s.GetByID(ctx, productID); err != nil {
		return nil, 0, err
	}
	return s.reviewRepo.ListByProduct(ctx, productID, skip, limit)
}

// AddReview attaches a review to an existing product
func (s *productService) AddReview(ctx context.Context, productID uuid.UUID, rating int, comment *string, createdBy uuid.UUID) (*domain.Review, error) {
	if _, err := s.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	review := &domain.Review{
		ID:        uuid.New(),
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if err == repository.ErrProductNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: productID.String()}
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	return review, nil
}

// ListRelated retrieves the related products of an existing product
func (s *productService) ListRelated(ctx context.Context, id uuid.UUID) ([]*domain.Product, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.productRepo.ListRelated(ctx, id)
}

// SetRelated replaces the related-products set and returns the new set
func (s *productService) SetRelated(ctx context.Context, id uuid.UUID, relatedIDs []uuid.UUID) ([]*domain.Product, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if err := s.productRepo.SetRelated(ctx, id, relatedIDs); err != nil {
		if err == repository.ErrProductNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to set related products: %w", err)
	}

	return s.productRepo.ListRelated(ctx, id)
}

// ReplaceTags replaces the tag set of an existing product
func (s *productService) ReplaceTags(ctx context.Context, id uuid.UUID, names []string) ([]*domain.Tag, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	tags, err := s.tagRepo.ReplaceProductTags(ctx, id, names)
	if err != nil {
		if err == repository.ErrProductNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to replace tags: %w", err)
	}

	return tags, nil
}

// validateCategory verifies the referenced category exists
func (s *productService) validateCategory(ctx context.Context, categoryID uuid.UUID) error {
	_, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		if err == repository.ErrCategoryNotFound {
			return &domain.ValidationError{
				Code:    domain.CodeInvalidCategory,
				Message: fmt.Sprintf("category %s not found", categoryID),
				Details: map[string]interface{}{"category_id": categoryID.String()},
			}
		}
		return fmt.Errorf("failed to validate category: %w", err)
	}
	return nil
}

func nullFieldError(field string) *domain.ValidationError {
	return &domain.ValidationError{
		Code:    domain.CodeNullField,
		Message: fmt.Sprintf("field %s cannot be null", field),
		Details: map[string]interface{}{"field": field},
	}
}
