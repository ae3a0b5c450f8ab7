package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// PresentationType is how a product is packaged for sale.
type PresentationType string

const (
	PresentationBox     PresentationType = "box"
	PresentationUnit    PresentationType = "unit"
	PresentationSixpack PresentationType = "sixpack"
)

// Valid reports whether p is a known presentation type.
func (p PresentationType) Valid() bool {
	switch p {
	case PresentationBox, PresentationUnit, PresentationSixpack:
		return true
	}
	return false
}

// Product is a catalog entry with its price row and images.
type Product struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	PresentationType     PresentationType `json:"presentation_type"`
	UnitsPerPresentation int              `json:"units_per_presentation"`
	IsActive             bool             `json:"is_active"`
	ReorderLevel         int              `json:"reorder_level"`
	ReorderQuantity      int              `json:"reorder_quantity"`
	CreatedAt            time.Time        `json:"created_at"`
	Price                *ProductPrice    `json:"product_prices"`
	Images               []ProductImage   `json:"product_images"`
}

// PrimaryImage returns the image flagged primary, falling back to the lowest sort order.
func (p Product) PrimaryImage() (ProductImage, bool) {
	if len(p.Images) == 0 {
		return ProductImage{}, false
	}
	best := p.Images[0]
	for _, img := range p.Images {
		if img.IsPrimary {
			return img, true
		}
		if img.SortOrder < best.SortOrder {
			best = img
		}
	}
	return best, true
}

// ProductPrice holds purchase and sale prices per box and per unit.
type ProductPrice struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	PurchasePriceBox  decimal.Decimal `json:"purchase_price_box"`
	PurchasePriceUnit decimal.Decimal `json:"purchase_price_unit"`
	SalePriceBox      decimal.Decimal `json:"sale_price_box"`
	SalePriceUnit     decimal.Decimal `json:"sale_price_unit"`
}

// ProductImage references an object in the product image bucket.
type ProductImage struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

// ListFilter narrows ListProducts. The zero value lists everything.
type ListFilter struct {
	Search string
	Active *bool
	Sort   string
}
