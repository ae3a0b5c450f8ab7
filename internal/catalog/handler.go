package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/backoffice/internal/platform/httpx"
	"github.com/shopdesk/backoffice/internal/platform/storage"
	"github.com/shopdesk/backoffice/internal/shared"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyModule = "catalog.create"
	defaultMaxUpload  = 32 << 20
)

// IdempotencyGuard claims request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Submitter runs a product form submission.
type Submitter interface {
	Submit(ctx context.Context, form Form, files []ImageFile) Outcome
}

// Handler exposes the catalog over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	workflow    Submitter
	objects     storage.Store
	bucket      string
	idempotency IdempotencyGuard
	maxUpload   int64
}

// HandlerConfig groups optional handler settings.
type HandlerConfig struct {
	Bucket         string
	MaxUploadBytes int64
}

// NewHandler constructs Handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, workflow Submitter, objects storage.Store, idempotency IdempotencyGuard, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "product-images"
	}
	return &Handler{
		logger:      logger,
		service:     service,
		workflow:    workflow,
		objects:     objects,
		bucket:      cfg.Bucket,
		idempotency: idempotency,
		maxUpload:   cfg.MaxUploadBytes,
	}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Get("/export.csv", h.exportProducts)
	r.Get("/images/*", h.downloadImage)
	r.Get("/{id}", h.getProduct)
	r.Post("/", h.createProduct)
	r.Put("/{id}", h.updateProduct)
}

func filterFromQuery(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Search: strings.TrimSpace(q.Get("search")), Sort: q.Get("sort")}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: active must be a boolean", httpx.ErrValidation)
		}
		filter.Active = &active
	}
	return filter, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res := h.service.ListProducts(r.Context(), filter)
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	httpx.OK(w, http.StatusOK, res.Message, BuildTable(res.Data))
}

func (h *Handler) exportProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res := h.service.ListProducts(r.Context(), filter)
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	body, err := ExportCSV(BuildRows(res.Data))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="products-%s.csv"`, time.Now().UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	res := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	httpx.OK(w, http.StatusOK, res.Message, res.Data)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "this request was already processed")
				return
			}
			h.logger.ErrorContext(r.Context(), "idempotency check", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	outcome, ok := h.submit(w, r, "")
	if !ok || !outcome.OK() {
		if key != "" && h.idempotency != nil {
			if err := h.idempotency.Release(r.Context(), key, idempotencyModule); err != nil {
				h.logger.WarnContext(r.Context(), "release idempotency key", slog.Any("error", err))
			}
		}
	}
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	_, _ = h.submit(w, r, chi.URLParam(r, "id"))
}

// submit parses the multipart form, runs the workflow and writes the
// response. It reports false when the request never reached the workflow.
// The product id only ever comes from the route.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id string) (Outcome, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart form")
		return Outcome{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := formFromRequest(r)
	form.ID = id
	if id == "" {
		form.ProductPriceID = ""
	}
	files, closeFiles, err := openImages(r.MultipartForm.File["images"])
	defer closeFiles()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "could not read uploaded images")
		return Outcome{}, false
	}

	outcome := h.workflow.Submit(r.Context(), form, files)
	sess := shared.SessionFromContext(r.Context())
	if !outcome.OK() {
		if sess != nil {
			sess.AddNotice(shared.Notice{Level: "error", Message: outcome.Message})
		}
		httpx.RespondError(w, outcome.Failure)
		return outcome, true
	}
	if sess != nil {
		sess.AddNotice(shared.Notice{Level: "success", Message: outcome.Message})
	}
	status := http.StatusCreated
	if outcome.Edit {
		status = http.StatusOK
	}
	httpx.OK(w, status, outcome.Message, outcome.Product)
	return outcome, true
}

func formFromRequest(r *http.Request) Form {
	return Form{
		ProductPriceID:       r.FormValue("product_price_id"),
		Name:                 r.FormValue("name"),
		PresentationType:     r.FormValue("presentation_type"),
		UnitsPerPresentation: r.FormValue("units_per_presentation"),
		IsActive:             r.FormValue("is_active"),
		ReorderLevel:         r.FormValue("reorder_level"),
		ReorderQuantity:      r.FormValue("reorder_quantity"),
		PurchasePriceBox:     r.FormValue("purchase_price_box"),
		PurchasePriceUnit:    r.FormValue("purchase_price_unit"),
		SalePriceBox:         r.FormValue("sale_price_box"),
		SalePriceUnit:        r.FormValue("sale_price_unit"),
	}
}

func openImages(headers []*multipart.FileHeader) ([]ImageFile, func(), error) {
	files := make([]ImageFile, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, f)
		files = append(files, ImageFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return files, closeAll, nil
}

func (h *Handler) downloadImage(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if path == "" || strings.Contains(path, "..") {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	body, obj, err := h.objects.Download(r.Context(), h.bucket, path)
	if err != nil {
		httpx.RespondError(w, shared.NewFailure(r.Context(), h.logger, err, "Could not download image"))
		return
	}
	defer body.Close()
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "stream image", slog.String("path", path), slog.Any("error", err))
	}
}
