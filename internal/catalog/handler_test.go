package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/backoffice/internal/platform/storage"
	"github.com/shopdesk/backoffice/internal/shared"
)

type guardStub struct {
	claimed  map[string]bool
	released []string
}

func (g *guardStub) CheckAndInsert(_ context.Context, key, _ string) error {
	if g.claimed[key] {
		return shared.ErrIdempotencyConflict
	}
	g.claimed[key] = true
	return nil
}

func (g *guardStub) Release(_ context.Context, key, _ string) error {
	delete(g.claimed, key)
	g.released = append(g.released, key)
	return nil
}

type handlerFixture struct {
	router http.Handler
	store  *storage.MemoryStore
	repo   *memoryRepo
	guard  *guardStub
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()
	repo := newMemoryRepo()
	store := storage.NewMemoryStore()
	svc := NewService(repo, nil, nil, nil)
	wf := NewWorkflow(svc, store, nil, nil, WorkflowConfig{Bucket: "product-images", Random: sequence()})
	guard := &guardStub{claimed: map[string]bool{}}
	h := NewHandler(nil, svc, wf, store, guard, HandlerConfig{Bucket: "product-images"})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(r.Context(), actorID)))
		})
	})
	r.Route("/products", h.MountRoutes)
	return handlerFixture{router: r, store: store, repo: repo, guard: guard}
}

func multipartBody(t *testing.T, fields map[string]string, images map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, contentType := range images {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func productFields() map[string]string {
	return map[string]string{
		"name":                   "Soap",
		"presentation_type":      "box",
		"units_per_presentation": "12",
		"is_active":              "on",
		"reorder_level":          "5",
		"reorder_quantity":       "20",
		"purchase_price_box":     "10",
		"purchase_price_unit":    "1",
		"sale_price_box":         "15",
		"sale_price_unit":        "1.5",
	}
}

func TestCreateProductEndpoint(t *testing.T) {
	fx := newHandlerFixture(t)
	body, contentType := multipartBody(t, productFields(), map[string]string{"soap.png": "image/png"})

	req := httptest.NewRequest(http.MethodPost, "/products/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env struct {
		Message string  `json:"message"`
		Data    Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "Product created successfully", env.Message)
	require.Equal(t, "Soap", env.Data.Name)
	require.Len(t, env.Data.Images, 1)
	require.True(t, env.Data.Images[0].IsPrimary)
	require.Len(t, fx.store.Keys("product-images"), 1)

	img := httptest.NewRequest(http.MethodGet, "/products/images/"+env.Data.Images[0].ImageURL, nil)
	imgRec := httptest.NewRecorder()
	fx.router.ServeHTTP(imgRec, img)
	require.Equal(t, http.StatusOK, imgRec.Code)
	require.Equal(t, "image/png", imgRec.Header().Get("Content-Type"))
}

func TestCreateProductEndpointValidation(t *testing.T) {
	fx := newHandlerFixture(t)
	fields := productFields()
	fields["sale_price_unit"] = "abc"
	body, contentType := multipartBody(t, fields, nil)

	req := httptest.NewRequest(http.MethodPost, "/products/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", "req-1")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var problem struct {
		Kind   string            `json:"kind"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "validation", problem.Kind)
	require.Contains(t, problem.Fields, "sale_price_unit")
	require.Equal(t, []string{"req-1"}, fx.guard.released)
}

func TestCreateProductEndpointIdempotency(t *testing.T) {
	fx := newHandlerFixture(t)
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		body, contentType := multipartBody(t, productFields(), nil)
		req := httptest.NewRequest(http.MethodPost, "/products/", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Idempotency-Key", "same-key")
		rec := httptest.NewRecorder()
		fx.router.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
	require.Len(t, fx.repo.products, 1)
}

func TestGetProductEndpointNotFound(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+productID, nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"not_found"`)

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/p1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"not_found"`)
}

func TestCreateProductEndpointIgnoresBodyID(t *testing.T) {
	fx := newHandlerFixture(t)
	existing, err := fx.repo.CreateWithPrice(context.Background(), createParams())
	require.NoError(t, err)

	fields := productFields()
	fields["id"] = existing.ID
	fields["product_price_id"] = existing.Price.ID
	fields["name"] = "Shampoo"
	body, contentType := multipartBody(t, fields, nil)

	req := httptest.NewRequest(http.MethodPost, "/products/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, fx.repo.products, 2)
	require.Equal(t, "Soap", fx.repo.products[existing.ID].Name)
}

func TestListAndExportEndpoints(t *testing.T) {
	fx := newHandlerFixture(t)
	svc := NewService(fx.repo, nil, nil, nil)
	require.True(t, svc.CreateProduct(context.Background(), createParams()).OK())

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/?active=true&sort=name", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data Table `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data.Rows, 1)
	require.Equal(t, "$15.00", env.Data.Rows[0].SalePriceBox)
	require.Len(t, env.Data.Columns, len(Columns))

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, rec.Body.String(), "Soap")

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/?active=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadImageEndpoint(t *testing.T) {
	fx := newHandlerFixture(t)
	require.NoError(t, fx.store.Upload(context.Background(), "product-images", "owner-0.5.png", bytes.NewReader([]byte("\x89PNG")), 4, "image/png"))

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/images/owner-0.5.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "\x89PNG", rec.Body.String())

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/images/missing.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
