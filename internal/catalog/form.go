package catalog

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shopdesk/backoffice/internal/shared"
)

// Integer columns are int4 and prices are numeric(14,4).
var (
	integerPattern = regexp.MustCompile(`^[0-9]+$`)
	pricePattern   = regexp.MustCompile(`^[0-9]{1,10}(\.[0-9]{1,4})?$`)
)

// Form is the product form as submitted by the dashboard. Numeric fields stay
// strings until validation passes.
type Form struct {
	ID                   string `form:"id" validate:"omitempty,uuid"`
	ProductPriceID       string `form:"product_price_id" validate:"required_with=ID,omitempty,uuid"`
	Name                 string `form:"name" validate:"required,min=2,max=120"`
	PresentationType     string `form:"presentation_type" validate:"required,oneof=box unit sixpack"`
	UnitsPerPresentation string `form:"units_per_presentation" validate:"required,integer"`
	IsActive             string `form:"is_active" validate:"omitempty,oneof=true false on off 1 0"`
	ReorderLevel         string `form:"reorder_level" validate:"omitempty,integer"`
	ReorderQuantity      string `form:"reorder_quantity" validate:"required,integer"`
	PurchasePriceBox     string `form:"purchase_price_box" validate:"required,price"`
	PurchasePriceUnit    string `form:"purchase_price_unit" validate:"required,price"`
	SalePriceBox         string `form:"sale_price_box" validate:"required,price"`
	SalePriceUnit        string `form:"sale_price_unit" validate:"required,price"`
}

// ImageFile is one file selected in the form.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// IsEdit reports whether the form targets an existing product.
func (f Form) IsEdit() bool { return strings.TrimSpace(f.ID) != "" }

func newFormValidator() *validator.Validate {
	v := shared.NewValidator()
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if !integerPattern.MatchString(raw) {
			return false
		}
		_, err := strconv.ParseInt(raw, 10, 32)
		return err == nil
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		return pricePattern.MatchString(fl.Field().String())
	})
	return v
}

func (f Form) normalized() Form {
	f.ID = strings.TrimSpace(f.ID)
	f.ProductPriceID = strings.TrimSpace(f.ProductPriceID)
	f.Name = strings.TrimSpace(f.Name)
	f.PresentationType = strings.ToLower(strings.TrimSpace(f.PresentationType))
	f.UnitsPerPresentation = strings.TrimSpace(f.UnitsPerPresentation)
	f.ReorderLevel = strings.TrimSpace(f.ReorderLevel)
	f.ReorderQuantity = strings.TrimSpace(f.ReorderQuantity)
	f.PurchasePriceBox = strings.TrimSpace(f.PurchasePriceBox)
	f.PurchasePriceUnit = strings.TrimSpace(f.PurchasePriceUnit)
	f.SalePriceBox = strings.TrimSpace(f.SalePriceBox)
	f.SalePriceUnit = strings.TrimSpace(f.SalePriceUnit)
	return f
}

func (f Form) active() bool {
	switch strings.ToLower(f.IsActive) {
	case "true", "on", "1":
		return true
	}
	return false
}

func (f Form) prices() Prices {
	return Prices{
		PurchasePriceBox:  parseDecimal(f.PurchasePriceBox),
		PurchasePriceUnit: parseDecimal(f.PurchasePriceUnit),
		SalePriceBox:      parseDecimal(f.SalePriceBox),
		SalePriceUnit:     parseDecimal(f.SalePriceUnit),
	}
}

func (f Form) createParams(images []ImageRecord, actorID string) CreateProductParams {
	return CreateProductParams{
		Name:                 f.Name,
		PresentationType:     PresentationType(f.PresentationType),
		UnitsPerPresentation: parseInt(f.UnitsPerPresentation),
		IsActive:             f.active(),
		ReorderLevel:         parseInt(f.ReorderLevel),
		ReorderQuantity:      parseInt(f.ReorderQuantity),
		Prices:               f.prices(),
		Images:               images,
		ActorID:              actorID,
	}
}

func (f Form) updateParams(actorID string) UpdateProductParams {
	return UpdateProductParams{
		ID:                   f.ID,
		ProductPriceID:       f.ProductPriceID,
		Name:                 f.Name,
		PresentationType:     PresentationType(f.PresentationType),
		UnitsPerPresentation: parseInt(f.UnitsPerPresentation),
		IsActive:             f.active(),
		ReorderQuantity:      parseInt(f.ReorderQuantity),
		Prices:               f.prices(),
		ActorID:              actorID,
	}
}

// FormFromProduct prefills the edit form.
func FormFromProduct(p Product) Form {
	f := Form{
		ID:                   p.ID,
		Name:                 p.Name,
		PresentationType:     string(p.PresentationType),
		UnitsPerPresentation: strconv.Itoa(p.UnitsPerPresentation),
		IsActive:             strconv.FormatBool(p.IsActive),
		ReorderLevel:         strconv.Itoa(p.ReorderLevel),
		ReorderQuantity:      strconv.Itoa(p.ReorderQuantity),
	}
	if p.Price != nil {
		f.ProductPriceID = p.Price.ID
		f.PurchasePriceBox = p.Price.PurchasePriceBox.String()
		f.PurchasePriceUnit = p.Price.PurchasePriceUnit.String()
		f.SalePriceBox = p.Price.SalePriceBox.String()
		f.SalePriceUnit = p.Price.SalePriceUnit.String()
	}
	return f
}

// parseInt is only called on validated input; out of range yields 0.
func parseInt(s string) int {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0
	}
	return int(n)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
