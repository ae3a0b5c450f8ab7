package catalog

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopdesk/backoffice/internal/platform/storage"
	"github.com/shopdesk/backoffice/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	products map[string]Product
	lists    int
	failWith error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[string]Product)}
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.failWith != nil {
		return nil, r.failWith
	}
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return Product{}, r.failWith
	}
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) CreateWithPrice(_ context.Context, params CreateProductParams) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return Product{}, r.failWith
	}
	id := uuid.NewString()
	p := Product{
		ID:                   id,
		Name:                 params.Name,
		PresentationType:     params.PresentationType,
		UnitsPerPresentation: params.UnitsPerPresentation,
		IsActive:             params.IsActive,
		ReorderLevel:         params.ReorderLevel,
		ReorderQuantity:      params.ReorderQuantity,
		CreatedAt:            time.Now().UTC(),
		Price: &ProductPrice{
			ID:                uuid.NewString(),
			ProductID:         id,
			PurchasePriceBox:  params.Prices.PurchasePriceBox,
			PurchasePriceUnit: params.Prices.PurchasePriceUnit,
			SalePriceBox:      params.Prices.SalePriceBox,
			SalePriceUnit:     params.Prices.SalePriceUnit,
		},
		Images: []ProductImage{},
	}
	for _, img := range params.Images {
		p.Images = append(p.Images, ProductImage{ID: uuid.NewString(), ProductID: id, ImageURL: img.ImageURL, IsPrimary: img.IsPrimary, SortOrder: img.SortOrder})
	}
	r.products[id] = p
	return p, nil
}

func (r *memoryRepo) UpdateWithPrice(_ context.Context, params UpdateProductParams) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[params.ID]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	p.Name = params.Name
	p.PresentationType = params.PresentationType
	p.UnitsPerPresentation = params.UnitsPerPresentation
	p.IsActive = params.IsActive
	p.ReorderQuantity = params.ReorderQuantity
	p.Price.PurchasePriceBox = params.Prices.PurchasePriceBox
	p.Price.PurchasePriceUnit = params.Prices.PurchasePriceUnit
	p.Price.SalePriceBox = params.Prices.SalePriceBox
	p.Price.SalePriceUnit = params.Prices.SalePriceUnit
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) InsertImages(_ context.Context, records []ImageRecord) ([]ProductImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProductImage, 0, len(records))
	for _, rec := range records {
		p, ok := r.products[rec.ProductID]
		if !ok {
			return nil, shared.ErrNotFound
		}
		img := ProductImage{ID: uuid.NewString(), ProductID: rec.ProductID, ImageURL: rec.ImageURL, IsPrimary: rec.IsPrimary, SortOrder: rec.SortOrder}
		p.Images = append(p.Images, img)
		r.products[p.ID] = p
		out = append(out, img)
	}
	return out, nil
}

// recordingPersister captures what the workflow asks to persist.
type recordingPersister struct {
	mu      sync.Mutex
	creates []CreateProductParams
	updates []UpdateProductParams
	syncs   [][]ImageRecord

	createFailure *shared.Failure
	updateFailure *shared.Failure
	syncFailure   *shared.Failure
}

func (p *recordingPersister) CreateProduct(_ context.Context, params CreateProductParams) shared.Result[Product] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates = append(p.creates, params)
	if p.createFailure != nil {
		return shared.Fail[Product](p.createFailure)
	}
	return shared.Ok(Product{ID: "new-product", Name: params.Name}, "Product created successfully")
}

func (p *recordingPersister) UpdateProduct(_ context.Context, params UpdateProductParams) shared.Result[Product] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, params)
	if p.updateFailure != nil {
		return shared.Fail[Product](p.updateFailure)
	}
	return shared.Ok(Product{ID: params.ID, Name: params.Name}, "Product updated successfully")
}

func (p *recordingPersister) SyncImages(_ context.Context, records []ImageRecord) shared.Result[[]ProductImage] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncs = append(p.syncs, records)
	if p.syncFailure != nil {
		return shared.Fail[[]ProductImage](p.syncFailure)
	}
	out := make([]ProductImage, len(records))
	for i, rec := range records {
		out[i] = ProductImage{ID: uuid.NewString(), ProductID: rec.ProductID, ImageURL: rec.ImageURL, IsPrimary: rec.IsPrimary, SortOrder: rec.SortOrder}
	}
	return shared.Ok(out, "Images saved")
}

// countingStore wraps a MemoryStore, counts uploads and fails for files whose
// key ends with failSuffix.
type countingStore struct {
	*storage.MemoryStore
	mu         sync.Mutex
	uploads    []string
	failSuffix string
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *countingStore) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.uploads = append(s.uploads, key)
	s.mu.Unlock()
	if s.failSuffix != "" && strings.HasSuffix(key, s.failSuffix) {
		return &storage.Error{Op: "upload", Bucket: bucket, Key: key, Err: errors.New("bucket unavailable")}
	}
	return s.MemoryStore.Upload(ctx, bucket, key, body, size, contentType)
}

func (s *countingStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

type orphanSink struct {
	mu   sync.Mutex
	keys []string
}

func (o *orphanSink) ReportOrphans(_ context.Context, _ string, keys []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keys = append(o.keys, keys...)
	return nil
}

func sequence() func() float64 {
	var mu sync.Mutex
	n := 0
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		n++
		return float64(n) / 1000
	}
}

func validForm() Form {
	return Form{
		Name:                 "Soap",
		PresentationType:     "box",
		UnitsPerPresentation: "12",
		IsActive:             "true",
		ReorderLevel:         "5",
		ReorderQuantity:      "20",
		PurchasePriceBox:     "10",
		PurchasePriceUnit:    "1",
		SalePriceBox:         "15",
		SalePriceUnit:        "1.5",
	}
}

func imageFile(name string) ImageFile {
	return ImageFile{Filename: name, ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
}
