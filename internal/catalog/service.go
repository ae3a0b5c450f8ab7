package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopdesk/backoffice/internal/shared"
)

const tracerName = "github.com/shopdesk/backoffice/internal/catalog"

// RepositoryPort abstracts product persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	CreateWithPrice(ctx context.Context, params CreateProductParams) (Product, error)
	UpdateWithPrice(ctx context.Context, params UpdateProductParams) (Product, error)
	InsertImages(ctx context.Context, records []ImageRecord) ([]ProductImage, error)
}

// AuditPort records product changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps every product call in a shared.Result. It never returns raw
// errors or panics past its methods.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	audit  AuditPort
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService builds Service. cache and audit may be nil.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		audit:  audit,
		logger: logger.With(slog.String("component", "catalog")),
		tracer: otel.Tracer(tracerName),
	}
}

// ListProducts returns every product matching filter. No rows is a success
// with an empty slice.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) shared.Result[[]Product] {
	ctx, span := s.tracer.Start(ctx, "catalog.ListProducts")
	defer span.End()

	if _, ok := sortClauses[filter.Sort]; !ok {
		return shared.Fail[[]Product](shared.Invalid("Invalid sort option", map[string]string{"sort": "is invalid"}))
	}
	products, err := s.cache.Products(ctx, filter, func(ctx context.Context) ([]Product, error) {
		return s.repo.List(ctx, filter)
	})
	if err != nil {
		return shared.Fail[[]Product](s.fail(ctx, span, err, "Could not load products"))
	}
	if products == nil {
		products = []Product{}
	}
	span.SetAttributes(attribute.Int("catalog.products", len(products)))
	return shared.Ok(products, "Products loaded")
}

// GetProduct loads one product.
func (s *Service) GetProduct(ctx context.Context, id string) shared.Result[Product] {
	ctx, span := s.tracer.Start(ctx, "catalog.GetProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if id == "" {
		return shared.Fail[Product](shared.Invalid("Product id is required", map[string]string{"id": "is required"}))
	}
	if err := uuid.Validate(id); err != nil {
		return shared.Fail[Product](s.fail(ctx, span, fmt.Errorf("product %q: %w", id, shared.ErrNotFound), "product not found"))
	}
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		message := "Could not load product"
		if shared.Classify(err) == shared.KindNotFound {
			message = "product not found"
		}
		return shared.Fail[Product](s.fail(ctx, span, err, message))
	}
	return shared.Ok(product, "Product loaded")
}

// CreateProduct creates a product together with its price row and images.
func (s *Service) CreateProduct(ctx context.Context, params CreateProductParams) shared.Result[Product] {
	ctx, span := s.tracer.Start(ctx, "catalog.CreateProduct", trace.WithAttributes(
		attribute.String("product.name", params.Name),
		attribute.Int("product.images", len(params.Images)),
	))
	defer span.End()

	if err := params.Validate(); err != nil {
		return shared.Fail[Product](shared.Invalid(err.Error(), nil))
	}
	product, err := s.repo.CreateWithPrice(ctx, params)
	if err != nil {
		return shared.Fail[Product](s.fail(ctx, span, err, "Could not create product"))
	}
	span.SetAttributes(attribute.String("product.id", product.ID))
	s.afterWrite(ctx, "product.create", product.ID, params.ActorID, map[string]any{
		"name":   product.Name,
		"images": len(params.Images),
	})
	return shared.Ok(product, "Product created successfully")
}

// UpdateProduct updates core and price fields. An empty id is a validation failure.
func (s *Service) UpdateProduct(ctx context.Context, params UpdateProductParams) shared.Result[Product] {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateProduct", trace.WithAttributes(attribute.String("product.id", params.ID)))
	defer span.End()

	if err := params.Validate(); err != nil {
		if errors.Is(err, ErrProductIDRequired) {
			return shared.Fail[Product](shared.Invalid("Product id is required", map[string]string{"id": "is required"}))
		}
		return shared.Fail[Product](shared.Invalid(err.Error(), nil))
	}
	product, err := s.repo.UpdateWithPrice(ctx, params)
	if err != nil {
		return shared.Fail[Product](s.fail(ctx, span, err, "Could not update product"))
	}
	s.afterWrite(ctx, "product.update", product.ID, params.ActorID, map[string]any{"name": product.Name})
	return shared.Ok(product, "Product updated successfully")
}

// SyncImages inserts image rows for existing products.
func (s *Service) SyncImages(ctx context.Context, records []ImageRecord) shared.Result[[]ProductImage] {
	ctx, span := s.tracer.Start(ctx, "catalog.SyncImages", trace.WithAttributes(attribute.Int("product.images", len(records))))
	defer span.End()

	if err := validateImageRecords(records); err != nil {
		return shared.Fail[[]ProductImage](shared.Invalid("Image records need a product and a path", nil))
	}
	inserted, err := s.repo.InsertImages(ctx, records)
	if err != nil {
		return shared.Fail[[]ProductImage](s.fail(ctx, span, err, "Could not save product images"))
	}
	if len(inserted) > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.WarnContext(ctx, "catalog cache bump failed", slog.Any("error", err))
		}
	}
	return shared.Ok(inserted, "Images saved")
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error, message string) *shared.Failure {
	failure := shared.NewFailure(ctx, s.logger, err, message)
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	span.SetAttributes(attribute.String("error.cause", failure.Kind()))
	return failure
}

func (s *Service) afterWrite(ctx context.Context, action, productID, actorID string, meta map[string]any) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "catalog cache bump failed", slog.Any("error", err))
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: productID,
		Meta:     meta,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
