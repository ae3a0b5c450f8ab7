package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/go-playground/validator/v10"

	"github.com/shopdesk/backoffice/internal/platform/storage"
	"github.com/shopdesk/backoffice/internal/shared"
)

// State is a step of a product form submission.
type State string

const (
	StateIdle          State = "idle"
	StateValidating    State = "validating"
	StateInvalid       State = "invalid"
	StateUploading     State = "uploading"
	StatePersisting    State = "persisting"
	StateSyncingImages State = "syncing_images"
	StateFailed        State = "failed"
	StateDone          State = "done"
)

// DefaultMaxImages caps the files accepted in one submission.
const DefaultMaxImages = 10

// Persister is the product service as seen by the workflow.
type Persister interface {
	CreateProduct(ctx context.Context, params CreateProductParams) shared.Result[Product]
	UpdateProduct(ctx context.Context, params UpdateProductParams) shared.Result[Product]
	SyncImages(ctx context.Context, records []ImageRecord) shared.Result[[]ProductImage]
}

// OrphanReporter receives objects uploaded by a submission that failed
// before they were attributed to a product.
type OrphanReporter interface {
	ReportOrphans(ctx context.Context, bucket string, keys []string) error
}

// Observer is notified on every state transition.
type Observer func(from, to State)

// WorkflowConfig tunes the workflow.
type WorkflowConfig struct {
	Bucket    string
	MaxImages int
	// Random feeds object name generation; nil uses math/rand.
	Random func() float64
}

// Outcome is the result of one submission.
type Outcome struct {
	State   State
	Step    State
	Edit    bool
	Product Product
	Message string
	Failure *shared.Failure
	Paths   []string
}

// OK reports whether the submission completed.
func (o Outcome) OK() bool { return o.State == StateDone }

// Workflow validates a product form, uploads its images in parallel, then
// creates or updates the product and attaches the new images.
type Workflow struct {
	persister Persister
	store     storage.Store
	orphans   OrphanReporter
	logger    *slog.Logger
	tracer    trace.Tracer
	validate  *validator.Validate
	cfg       WorkflowConfig
	observers []Observer
}

// NewWorkflow wires a Workflow. orphans may be nil.
func NewWorkflow(persister Persister, store storage.Store, orphans OrphanReporter, logger *slog.Logger, cfg WorkflowConfig, observers ...Observer) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "product-images"
	}
	return &Workflow{
		persister: persister,
		store:     store,
		orphans:   orphans,
		logger:    logger.With(slog.String("component", "catalog.workflow")),
		tracer:    otel.Tracer(tracerName),
		validate:  newFormValidator(),
		cfg:       cfg,
		observers: observers,
	}
}

type submission struct {
	w     *Workflow
	state State
}

func (s *submission) to(next State) {
	prev := s.state
	s.state = next
	for _, obs := range s.w.observers {
		obs(prev, next)
	}
}

// Submit runs one submission. The acting user id is read from ctx and used
// as the image owner when the product does not exist yet.
func (w *Workflow) Submit(ctx context.Context, form Form, files []ImageFile) Outcome {
	form = form.normalized()
	edit := form.IsEdit()
	ctx, span := w.tracer.Start(ctx, "catalog.Workflow.Submit", trace.WithAttributes(
		attribute.Bool("product.edit", edit),
		attribute.Int("product.files", len(files)),
	))
	defer span.End()

	run := &submission{w: w, state: StateIdle}
	actorID := shared.UserFromContext(ctx)

	run.to(StateValidating)
	if fields := w.check(form, files); len(fields) > 0 {
		run.to(StateInvalid)
		span.SetStatus(codes.Error, "invalid form")
		return Outcome{
			State:   StateInvalid,
			Step:    StateValidating,
			Edit:    edit,
			Message: "Please correct the highlighted fields",
			Failure: shared.Invalid("Please correct the highlighted fields", fields),
		}
	}

	owner := actorID
	if edit {
		owner = form.ID
	}

	run.to(StateUploading)
	paths, err := w.upload(ctx, owner, files)
	if err != nil {
		return w.failed(ctx, run, span, edit, StateUploading, shared.NewFailure(ctx, w.logger, err, "Could not upload images"), paths)
	}
	pending := make([]ImageRecord, len(paths))
	for i, path := range paths {
		pending[i] = ImageRecord{ImageURL: path, IsPrimary: i == 0, SortOrder: i}
	}

	run.to(StatePersisting)
	var persisted shared.Result[Product]
	if edit {
		persisted = w.persister.UpdateProduct(ctx, form.updateParams(actorID))
	} else {
		persisted = w.persister.CreateProduct(ctx, form.createParams(pending, actorID))
	}
	if !persisted.OK() {
		return w.failed(ctx, run, span, edit, StatePersisting, persisted.Failure, paths)
	}
	product := persisted.Data

	if edit && len(pending) > 0 {
		run.to(StateSyncingImages)
		productID := product.ID
		if productID == "" {
			productID = form.ID
		}
		for i := range pending {
			pending[i].ProductID = productID
		}
		synced := w.persister.SyncImages(ctx, pending)
		if !synced.OK() {
			out := w.failed(ctx, run, span, edit, StateSyncingImages, synced.Failure, paths)
			out.Product = product
			return out
		}
		product.Images = append(product.Images, synced.Data...)
	}

	run.to(StateDone)
	message := "Product created successfully"
	if edit {
		message = "Product updated successfully"
	}
	w.logger.InfoContext(ctx, "product form submitted",
		slog.String("product_id", product.ID),
		slog.Bool("edit", edit),
		slog.Int("images", len(paths)),
	)
	return Outcome{State: StateDone, Step: StateDone, Edit: edit, Product: product, Message: message, Paths: paths}
}

func (w *Workflow) check(form Form, files []ImageFile) map[string]string {
	fields := shared.FieldErrors(w.validate.Struct(form))
	if fields == nil {
		fields = make(map[string]string)
	}
	if len(files) > w.cfg.MaxImages {
		fields["images"] = fmt.Sprintf("at most %d images per submission", w.cfg.MaxImages)
	}
	for _, f := range files {
		if f.Body == nil || strings.TrimSpace(f.Filename) == "" {
			fields["images"] = "every image needs a file name and content"
			break
		}
		if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
			fields["images"] = fmt.Sprintf("%s is not an image", f.Filename)
			break
		}
	}
	return fields
}

// upload issues one Upload per file, all in parallel. On failure it returns
// the paths that did upload so they can be cleaned up.
func (w *Workflow) upload(ctx context.Context, owner string, files []ImageFile) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	ctx, span := w.tracer.Start(ctx, "catalog.Workflow.upload", trace.WithAttributes(attribute.Int("files", len(files))))
	defer span.End()

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = storage.ObjectName(owner, f.Filename, w.cfg.Random)
	}

	var (
		mu   sync.Mutex
		done = make([]string, 0, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			if err := w.store.Upload(gctx, w.cfg.Bucket, paths[i], f.Body, f.Size, f.ContentType); err != nil {
				return err
			}
			mu.Lock()
			done = append(done, paths[i])
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return done, err
	}
	return paths, nil
}

func (w *Workflow) failed(ctx context.Context, run *submission, span trace.Span, edit bool, step State, failure *shared.Failure, uploaded []string) Outcome {
	run.to(StateFailed)
	span.SetStatus(codes.Error, failure.Message)
	span.SetAttributes(attribute.String("workflow.step", string(step)), attribute.String("error.cause", failure.Kind()))
	if len(uploaded) > 0 && w.orphans != nil {
		if err := w.orphans.ReportOrphans(context.WithoutCancel(ctx), w.cfg.Bucket, uploaded); err != nil {
			w.logger.WarnContext(ctx, "report orphaned uploads", slog.Int("count", len(uploaded)), slog.Any("error", err))
		}
	}
	return Outcome{State: StateFailed, Step: step, Edit: edit, Message: failure.Message, Failure: failure}
}
