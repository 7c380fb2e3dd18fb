package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Timestamps holds the creation/modification columns shared by most tables.
// UpdatedAt is nil until the row is first modified.
type Timestamps struct {
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Audit holds the acting-user columns shared by audited tables.
type Audit struct {
	CreatedBy uuid.UUID  `json:"created_by" db:"created_by"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	SKU         string          `json:"sku" db:"sku"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	IsPublished bool            `json:"is_published" db:"is_published"`
	PublishedAt *time.Time      `json:"published_at,omitempty" db:"published_at"`
	CategoryID  uuid.UUID       `json:"category_id" db:"category_id"`
	Audit
	Timestamps
}

// InStock reports whether any inventory remains.
func (p *Product) InStock() bool {
	return p.Quantity > 0
}

// HasDescription reports whether the product carries a non-empty description.
func (p *Product) HasDescription() bool {
	return p.Description != nil && *p.Description != ""
}

// Category represents a product category. Categories form a tree via ParentID.
type Category struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Slug        string     `json:"slug" db:"slug"`
	Description *string    `json:"description,omitempty" db:"description"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Timestamps
}

// Tag classifies products; products and tags are many-to-many.
type Tag struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// Review is a customer review attached to a product. Reviews are removed
// with their product (cascade in the schema).
type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   *string   `json:"comment,omitempty" db:"comment"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProductDetails is the eager-loaded view of a product: every cross-entity
// piece is fetched by an explicit query, never on demand.
type ProductDetails struct {
	Product     *Product  `json:"product"`
	Category    *Category `json:"category"`
	Tags        []*Tag    `json:"tags"`
	ReviewCount int       `json:"review_count"`
}
