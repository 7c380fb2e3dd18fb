package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog-api/internal/domain"
	"catalog-api/internal/middleware"
	"catalog-api/internal/repository"
	"catalog-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ProductCreateRequest represents the product creation payload
type ProductCreateRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	SKU         string          `json:"sku" validate:"required,max=50,sku"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
}

// ReviewCreateRequest represents the review creation payload
type ReviewCreateRequest struct {
	Rating  int     `json:"rating" validate:"required,gte=1,lte=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}

// RelatedProductsRequest replaces the related-products set
type RelatedProductsRequest struct {
	RelatedIDs []uuid.UUID `json:"related_ids"`
}

// ProductTagsRequest replaces the tag set
type ProductTagsRequest struct {
	Tags []string `json:"tags" validate:"dive,min=1,max=50"`
}

// BulkPriceUpdateRequest applies a price multiplier to a category
type BulkPriceUpdateRequest struct {
	CategoryID uuid.UUID       `json:"category_id" validate:"required"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// ProductResponse represents product data returned to clients
type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	InStock     bool            `json:"in_stock"`
	IsActive    bool            `json:"is_active"`
	IsPublished bool            `json:"is_published"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	CategoryID  string          `json:"category_id"`
	CreatedBy   string          `json:"created_by"`
	UpdatedBy   *string         `json:"updated_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// ProductListResponse is the paginated list envelope: a page of items plus
// the filter-wide total
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Total int               `json:"total"`
	Skip  int               `json:"skip"`
	Limit int               `json:"limit"`
}

// ProductDetailResponse is the eager-loaded product view
type ProductDetailResponse struct {
	ProductResponse
	Category    *CategoryResponse `json:"category,omitempty"`
	Tags        []TagResponse     `json:"tags"`
	ReviewCount int               `json:"review_count"`
}

// TagResponse represents a tag
type TagResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReviewResponse represents a review
type ReviewResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewListResponse is the paginated review envelope
type ReviewListResponse struct {
	Items []ReviewResponse `json:"items"`
	Total int              `json:"total"`
	Skip  int              `json:"skip"`
	Limit int              `json:"limit"`
}

// BulkPriceUpdateResponse reports how many rows the bulk update touched
type BulkPriceUpdateResponse struct {
	AffectedCount int `json:"affected_count"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Price:       p.Price,
		Quantity:    p.Quantity,
		InStock:     p.InStock(),
		IsActive:    p.IsActive,
		IsPublished: p.IsPublished,
		PublishedAt: p.PublishedAt,
		CategoryID:  p.CategoryID.String(),
		CreatedBy:   p.CreatedBy.String(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.UpdatedBy != nil {
		updatedBy := p.UpdatedBy.String()
		resp.UpdatedBy = &updatedBy
	}
	return resp
}

func newReviewResponse(review *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:        review.ID.String(),
		ProductID: review.ProductID.String(),
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedBy: review.CreatedBy.String(),
		CreatedAt: review.CreatedAt,
	}
}

// ProductHandler handles HTTP requests for product operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes. Every route requires an
// authenticated actor; mutating routes additionally require the admin role.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/details", h.GetDetails)
		r.Get("/{id}/reviews", h.ListReviews)
		r.Post("/{id}/reviews", h.CreateReview)
		r.Get("/{id}/related", h.ListRelated)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/publish", h.Publish)
			r.Put("/{id}/related", h.SetRelated)
			r.Put("/{id}/tags", h.ReplaceTags)
			r.Post("/bulk-price-update", h.BulkUpdatePrices)
		})
	})
}

// parseProductID extracts and parses the {id} path parameter
func parseProductID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads skip/limit query parameters with bounds
func parsePagination(r *http.Request) (skip, limit int, errs []middleware.ValidationError) {
	skip = 0
	limit = defaultPageLimit

	if raw := r.URL.Query().Get("skip"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			errs = append(errs, middleware.ValidationError{Field: "skip", Message: "Value must be greater than or equal to 0"})
		} else {
			skip = value
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 || value > maxPageLimit {
			errs = append(errs, middleware.ValidationError{Field: "limit", Message: "Value must be between 1 and 100"})
		} else {
			limit = value
		}
	}

	return skip, limit, errs
}

// parseProductFilter reads the optional list filters, including the
// cross-field rule that max_price may not undercut min_price
func parseProductFilter(r *http.Request) (repository.ProductFilter, []middleware.ValidationError) {
	filter := repository.ProductFilter{}
	var errs []middleware.ValidationError

	query := r.URL.Query()

	if raw := query.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs = append(errs, middleware.ValidationError{Field: "category_id", Message: "Invalid value"})
		} else {
			filter.CategoryID = &id
		}
	}

	filter.Search = query.Get("search")

	parsePrice := func(field string) *decimal.Decimal {
		raw := query.Get(field)
		if raw == "" {
			return nil
		}
		value, err := decimal.NewFromString(raw)
		if err != nil || value.IsNegative() {
			errs = append(errs, middleware.ValidationError{Field: field, Message: "Value must be greater than or equal to 0"})
			return nil
		}
		return &value
	}

	filter.MinPrice = parsePrice("min_price")
	filter.MaxPrice = parsePrice("max_price")

	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MaxPrice.LessThan(*filter.MinPrice) {
		errs = append(errs, middleware.ValidationError{Field: "max_price", Message: "Value must be greater than or equal to min_price"})
	}

	return filter, errs
}

// List handles listing products with pagination and filters
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, errs := parsePagination(r)
	filter, filterErrs := parseProductFilter(r)
	errs = append(errs, filterErrs...)
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	products, total, err := h.productService.List(r.Context(), filter, skip, limit)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	items := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		items = append(items, newProductResponse(product))
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Items: items,
		Total: total,
		Skip:  skip,
		Limit: limit,
	})
}

// Get handles retrieving a single product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.GetByID(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// GetDetails handles retrieving a product with its eager-loaded relations
func (h *ProductHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	details, err := h.productService.GetDetails(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	resp := ProductDetailResponse{
		ProductResponse: newProductResponse(details.Product),
		Tags:            make([]TagResponse, 0, len(details.Tags)),
		ReviewCount:     details.ReviewCount,
	}
	if details.Category != nil {
		category := newCategoryResponse(details.Category)
		resp.Category = &category
	}
	for _, tag := range details.Tags {
		resp.Tags = append(resp.Tags, TagResponse{ID: tag.ID.String(), Name: tag.Name})
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// Create handles product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Product create decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// SKUs are stored case-normalized
	req.SKU = strings.ToUpper(req.SKU)

	if err := middleware.ValidateRequest(&req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if priceErr := middleware.ValidatePrice("price", req.Price); priceErr != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{*priceErr})
		return
	}

	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	product, err := h.productService.Create(r.Context(), service.ProductCreate{
		Name:        req.Name,
		Description: req.Description,
		SKU:         req.SKU,
		Price:       req.Price,
		Quantity:    req.Quantity,
		CategoryID:  req.CategoryID,
	}, actorID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

// Update handles partial product updates. Only fields present in the
// payload are applied.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var update service.ProductUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Debug("Product update decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validateProductUpdate(&update); len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	product, err := h.productService.Update(r.Context(), id, &update, actorID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// validateProductUpdate applies the schema-layer constraints to the fields
// the caller actually supplied. Null handling for non-nullable fields is
// the service's business rule, not checked here.
func validateProductUpdate(update *service.ProductUpdate) []middleware.ValidationError {
	var errs []middleware.ValidationError

	if update.Has("name") && update.Name != nil {
		if *update.Name == "" || len(*update.Name) > 200 {
			errs = append(errs, middleware.ValidationError{Field: "name", Message: "Length must be between 1 and 200"})
		}
	}
	if update.Has("description") && update.Description != nil && len(*update.Description) > 2000 {
		errs = append(errs, middleware.ValidationError{Field: "description", Message: "Value is too long"})
	}
	if update.Has("price") && update.Price != nil {
		if priceErr := middleware.ValidatePrice("price", *update.Price); priceErr != nil {
			errs = append(errs, *priceErr)
		}
	}
	if update.Has("quantity") && update.Quantity != nil && *update.Quantity < 0 {
		errs = append(errs, middleware.ValidationError{Field: "quantity", Message: "Value must be greater than or equal to 0"})
	}

	return errs
}

// Delete handles product deletion
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Publish handles making a product visible to customers
func (h *ProductHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	product, err := h.productService.Publish(r.Context(), id, actorID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// ListReviews handles listing reviews for a product
func (h *ProductHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	skip, limit, errs := parsePagination(r)
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	reviews, total, err := h.productService.ListReviews(r.Context(), id, skip, limit)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	items := make([]ReviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, newReviewResponse(review))
	}

	middleware.RespondWithJSON(w, http.StatusOK, ReviewListResponse{
		Items: items,
		Total: total,
		Skip:  skip,
		Limit: limit,
	})
}

// CreateReview handles attaching a review to a product
func (h *ProductHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req ReviewCreateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actorID, ok := middleware.ActorID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	review, err := h.productService.AddReview(r.Context(), id, req.Rating, req.Comment, actorID)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newReviewResponse(review))
}

// ListRelated handles listing the related products
func (h *ProductHandler) ListRelated(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	related, err := h.productService.ListRelated(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	items := make([]ProductResponse, 0, len(related))
	for _, product := range related {
		items = append(items, newProductResponse(product))
	}

	middleware.RespondWithJSON(w, http.StatusOK, items)
}

// SetRelated handles replacing the related-products set
func (h *ProductHandler) SetRelated(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req RelatedProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	related, err := h.productService.SetRelated(r.Context(), id, req.RelatedIDs)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	items := make([]ProductResponse, 0, len(related))
	for _, product := range related {
		items = append(items, newProductResponse(product))
	}

	middleware.RespondWithJSON(w, http.StatusOK, items)
}

// ReplaceTags handles replacing the tag set of a product
func (h *ProductHandler) ReplaceTags(w http.ResponseWriter, r *http.Request) {
	id, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req ProductTagsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tags, err := h.productService.ReplaceTags(r.Context(), id, req.Tags)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	items := make([]TagResponse, 0, len(tags))
	for _, tag := range tags {
		items = append(items, TagResponse{ID: tag.ID.String(), Name: tag.Name})
	}

	middleware.RespondWithJSON(w, http.StatusOK, items)
}

// BulkUpdatePrices handles the category-wide price multiplier
func (h *ProductHandler) BulkUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req BulkPriceUpdateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.productService.BulkUpdatePrices(r.Context(), req.CategoryID, req.Multiplier)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, BulkPriceUpdateResponse{AffectedCount: count})
}
