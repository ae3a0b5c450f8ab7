package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopdesk/backoffice/internal/platform/db"
	"github.com/shopdesk/backoffice/internal/shared"
)

// Querier is the part of *pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Repository reads and writes products in PostgreSQL. Products are always
// returned as the jsonb document built by product_document().
type Repository struct {
	db Querier
}

// NewRepository constructs Repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

var sortClauses = map[string]string{
	"":                       "p.created_at DESC",
	"name":                   "p.name ASC",
	"-name":                  "p.name DESC",
	"created_at":             "p.created_at ASC",
	"-created_at":            "p.created_at DESC",
	"presentation_type":      "p.presentation_type ASC, p.name ASC",
	"units_per_presentation": "p.units_per_presentation ASC",
}

// SortKeys lists the accepted ListFilter.Sort values.
func SortKeys() []string {
	keys := make([]string, 0, len(sortClauses))
	for k := range sortClauses {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// List returns products with their price and images.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	order, ok := sortClauses[filter.Sort]
	if !ok {
		return nil, fmt.Errorf("catalog: unknown sort %q", filter.Sort)
	}
	query := fmt.Sprintf(`SELECT product_document(p.id)
FROM products p
WHERE ($1 = '' OR p.name ILIKE '%%' || $1 || '%%')
  AND ($2::boolean IS NULL OR p.is_active = $2)
ORDER BY %s, p.id`, order)

	rows, err := r.db.Query(ctx, query, filter.Search, filter.Active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		product, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// Get loads a product by id.
func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT product_document(p.id) FROM products p WHERE p.id = $1::uuid`, id).Scan(&doc)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct(doc)
}

// CreateWithPrice calls create_product_with_price.
func (r *Repository) CreateWithPrice(ctx context.Context, params CreateProductParams) (Product, error) {
	images := params.Images
	if images == nil {
		images = []ImageRecord{}
	}
	payload, err := json.Marshal(images)
	if err != nil {
		return Product{}, err
	}
	var doc []byte
	err = r.db.QueryRow(ctx, `SELECT create_product_with_price(
  _name => $1,
  _presentation_type => $2,
  _units_per_presentation => $3,
  _is_active => $4,
  _reorder_level => $5,
  _reorder_quantity => $6,
  _purchase_price_box => $7,
  _purchase_price_unit => $8,
  _sale_price_box => $9,
  _sale_price_unit => $10,
  _product_images => $11::jsonb)`,
		params.Name,
		string(params.PresentationType),
		params.UnitsPerPresentation,
		params.IsActive,
		params.ReorderLevel,
		params.ReorderQuantity,
		params.Prices.PurchasePriceBox.String(),
		params.Prices.PurchasePriceUnit.String(),
		params.Prices.SalePriceBox.String(),
		params.Prices.SalePriceUnit.String(),
		payload,
	).Scan(&doc)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct(doc)
}

// UpdateWithPrice calls update_product_with_price.
func (r *Repository) UpdateWithPrice(ctx context.Context, params UpdateProductParams) (Product, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT update_product_with_price(
  _id => $1::uuid,
  _is_active => $2,
  _name => $3,
  _presentation_type => $4,
  _product_price_id => NULLIF($5, '')::uuid,
  _purchase_price_box => $6,
  _purchase_price_unit => $7,
  _reorder_quantity => $8,
  _sale_price_box => $9,
  _sale_price_unit => $10,
  _units_per_presentation => $11)`,
		params.ID,
		params.IsActive,
		params.Name,
		string(params.PresentationType),
		params.ProductPriceID,
		params.Prices.PurchasePriceBox.String(),
		params.Prices.PurchasePriceUnit.String(),
		params.ReorderQuantity,
		params.Prices.SalePriceBox.String(),
		params.Prices.SalePriceUnit.String(),
		params.UnitsPerPresentation,
	).Scan(&doc)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct(doc)
}

const insertImageSQL = `INSERT INTO product_images (product_id, image_url, is_primary, sort_order)
VALUES ($1::uuid, $2, $3, $4)
RETURNING id::text, product_id::text, image_url, is_primary, sort_order`

// InsertImages bulk inserts image rows in one transaction.
func (r *Repository) InsertImages(ctx context.Context, records []ImageRecord) ([]ProductImage, error) {
	inserted := make([]ProductImage, 0, len(records))
	if len(records) == 0 {
		return inserted, nil
	}
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(insertImageSQL, rec.ProductID, rec.ImageURL, rec.IsPrimary, rec.SortOrder)
		}
		results := tx.SendBatch(ctx, batch)
		for range records {
			var img ProductImage
			if err := results.QueryRow().Scan(&img.ID, &img.ProductID, &img.ImageURL, &img.IsPrimary, &img.SortOrder); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert product image: %w", err)
			}
			inserted = append(inserted, img)
		}
		return results.Close()
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// decodeProduct maps a NULL document to shared.ErrNotFound.
func decodeProduct(doc []byte) (Product, error) {
	if len(doc) == 0 || string(doc) == "null" {
		return Product{}, shared.ErrNotFound
	}
	var product Product
	if err := json.Unmarshal(doc, &product); err != nil {
		return Product{}, fmt.Errorf("decode product: %w", err)
	}
	if product.Images == nil {
		product.Images = []ProductImage{}
	}
	return product, nil
}
