package service

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductUpdate is a partial-update payload. Presence is tracked per field
// during JSON decoding: a field absent from the payload is never applied,
// while a field present with a null value is an explicit request to clear it.
// Pointer fields alone cannot make that distinction, so the decoder records
// which keys the caller actually sent.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	IsActive    *bool
	CategoryID  *uuid.UUID

	present map[string]bool
}

// productUpdateFields maps payload keys to their decode targets.
var productUpdateFields = []string{
	"name", "description", "price", "quantity", "is_active", "category_id",
}

// UnmarshalJSON decodes the payload into a field map first so that key
// presence survives the decode.
func (u *ProductUpdate) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	u.present = make(map[string]bool)

	targets := map[string]interface{}{
		"name":        &u.Name,
		"description": &u.Description,
		"price":       &u.Price,
		"quantity":    &u.Quantity,
		"is_active":   &u.IsActive,
		"category_id": &u.CategoryID,
	}

	for _, field := range productUpdateFields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		u.present[field] = true
		if string(value) == "null" {
			continue
		}
		if err := json.Unmarshal(value, targets[field]); err != nil {
			return fmt.Errorf("invalid value for field %q: %w", field, err)
		}
	}

	return nil
}

// Has reports whether the caller supplied the named field, null included.
func (u *ProductUpdate) Has(field string) bool {
	return u.present[field]
}

// Fields returns the supplied field names in stable order.
func (u *ProductUpdate) Fields() []string {
	fields := make([]string, 0, len(u.present))
	for field := range u.present {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// SetField marks a field as supplied. Tests and programmatic callers use it
// in place of a JSON round trip.
func (u *ProductUpdate) SetField(field string) {
	if u.present == nil {
		u.present = make(map[string]bool)
	}
	u.present[field] = true
}
