package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ImageRecord is an image row to be inserted. ProductID is empty while the
// product does not exist yet.
type ImageRecord struct {
	ProductID string `json:"product_id,omitempty"`
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

// Prices groups the four price columns.
type Prices struct {
	PurchasePriceBox  decimal.Decimal
	PurchasePriceUnit decimal.Decimal
	SalePriceBox      decimal.Decimal
	SalePriceUnit     decimal.Decimal
}

func (p Prices) validate() error {
	for name, v := range map[string]decimal.Decimal{
		"purchase_price_box":  p.PurchasePriceBox,
		"purchase_price_unit": p.PurchasePriceUnit,
		"sale_price_box":      p.SalePriceBox,
		"sale_price_unit":     p.SalePriceUnit,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s", ErrNegativeValue, name)
		}
	}
	return nil
}

// CreateProductParams is the payload of create_product_with_price.
type CreateProductParams struct {
	Name                 string
	PresentationType     PresentationType
	UnitsPerPresentation int
	IsActive             bool
	ReorderLevel         int
	ReorderQuantity      int
	Prices               Prices
	Images               []ImageRecord
	ActorID              string
}

// Validate checks the payload before it reaches the database.
func (p CreateProductParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("catalog: name required")
	}
	if !p.PresentationType.Valid() {
		return ErrInvalidPresentation
	}
	if p.UnitsPerPresentation < 0 || p.ReorderLevel < 0 || p.ReorderQuantity < 0 {
		return ErrNegativeValue
	}
	for _, img := range p.Images {
		if img.ImageURL == "" || img.SortOrder < 0 {
			return ErrImageRecordInvalid
		}
	}
	return p.Prices.validate()
}

// UpdateProductParams is the payload of update_product_with_price. Images are
// not part of an update; they are added afterwards with SyncImages.
type UpdateProductParams struct {
	ID                   string
	ProductPriceID       string
	Name                 string
	PresentationType     PresentationType
	UnitsPerPresentation int
	IsActive             bool
	ReorderQuantity      int
	Prices               Prices
	ActorID              string
}

// Validate checks the payload before it reaches the database.
func (p UpdateProductParams) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrProductIDRequired
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("catalog: name required")
	}
	if !p.PresentationType.Valid() {
		return ErrInvalidPresentation
	}
	if p.UnitsPerPresentation < 0 || p.ReorderQuantity < 0 {
		return ErrNegativeValue
	}
	return p.Prices.validate()
}

func validateImageRecords(records []ImageRecord) error {
	for _, rec := range records {
		if rec.ProductID == "" || rec.ImageURL == "" || rec.SortOrder < 0 {
			return ErrImageRecordInvalid
		}
	}
	return nil
}
