package catalog

import (
	"bytes"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Column describes one column of the product table.
type Column struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Sortable bool   `json:"sortable"`
}

// Columns is the product table layout shown by the dashboard.
var Columns = []Column{
	{Key: "name", Title: "Name", Sortable: true},
	{Key: "presentation_type", Title: "Presentation Type", Sortable: true},
	{Key: "units_per_presentation", Title: "Units per Presentation", Sortable: true},
	{Key: "is_active", Title: "Active"},
	{Key: "purchase_price_box", Title: "Purchase Price per Box"},
	{Key: "purchase_price_unit", Title: "Purchase Price per Unit"},
	{Key: "sale_price_box", Title: "Sale Price per Box"},
	{Key: "sale_price_unit", Title: "Sale Price per Unit"},
	{Key: "primary_image", Title: "Image"},
}

// Row is one formatted table row. Prices of a product without a price row render as zero.
type Row struct {
	ID                   string `json:"id" csv:"id"`
	Name                 string `json:"name" csv:"name"`
	PresentationType     string `json:"presentation_type" csv:"presentation_type"`
	UnitsPerPresentation int    `json:"units_per_presentation" csv:"units_per_presentation"`
	IsActive             bool   `json:"is_active" csv:"is_active"`
	PurchasePriceBox     string `json:"purchase_price_box" csv:"purchase_price_box"`
	PurchasePriceUnit    string `json:"purchase_price_unit" csv:"purchase_price_unit"`
	SalePriceBox         string `json:"sale_price_box" csv:"sale_price_box"`
	SalePriceUnit        string `json:"sale_price_unit" csv:"sale_price_unit"`
	PrimaryImage         string `json:"primary_image,omitempty" csv:"primary_image"`
}

// Table is the payload of GET /products.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

var currencyPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders an amount in dollars with thousands separators.
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	return sign + "$" + currencyPrinter.Sprintf("%.2f", amount.Round(2).InexactFloat64())
}

// BuildRows maps products to table rows.
func BuildRows(products []Product) []Row {
	rows := make([]Row, 0, len(products))
	for _, p := range products {
		price := ProductPrice{}
		if p.Price != nil {
			price = *p.Price
		}
		row := Row{
			ID:                   p.ID,
			Name:                 p.Name,
			PresentationType:     string(p.PresentationType),
			UnitsPerPresentation: p.UnitsPerPresentation,
			IsActive:             p.IsActive,
			PurchasePriceBox:     FormatCurrency(price.PurchasePriceBox),
			PurchasePriceUnit:    FormatCurrency(price.PurchasePriceUnit),
			SalePriceBox:         FormatCurrency(price.SalePriceBox),
			SalePriceUnit:        FormatCurrency(price.SalePriceUnit),
		}
		if img, ok := p.PrimaryImage(); ok {
			row.PrimaryImage = img.ImageURL
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildTable returns columns plus rows.
func BuildTable(products []Product) Table {
	return Table{Columns: Columns, Rows: BuildRows(products)}
}

// ExportCSV renders rows as CSV with a header line.
func ExportCSV(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(&rows, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
