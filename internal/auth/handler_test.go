package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopdesk/backoffice/internal/auth"
	"github.com/shopdesk/backoffice/internal/shared"
	_ "github.com/shopdesk/backoffice/testing"
)

const testUserID = "3a7d5c1e-2b4f-4e6a-8c9d-0e1f2a3b4c5d"

type stubRepo struct {
	user     *auth.User
	sessions map[string]string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = map[string]string{}
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{ID: testUserID, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}
}

// newAuthRouter mounts the auth routes behind the session middleware.
func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *auth.TokenIssuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	tokens := auth.NewTokenIssuer("jwt-secret", time.Hour)
	handler := auth.NewHandler(nil, auth.NewService(repo, tokens), sessions, shared.NewCSRFManager("csrfsecret"))

	r := chi.NewRouter()
	r.Use(shared.SessionMiddleware(sessions, nil))
	r.Route("/auth", handler.MountRoutes)
	r.With(auth.RequireUser(tokens, nil)).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(shared.UserFromContext(r.Context())))
	})
	return r, tokens
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t)})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postJSON("/auth/login", `{"email":"user@test.local","password":"wrongpass"}`))

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password") {
		t.Fatalf("expected error message in response, got %s", res.Body.String())
	}
}

func TestLoginValidation(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t)})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postJSON("/auth/login", `{"email":"not-an-email","password":"x"}`))

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
}

func TestLoginStartsSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	router, _ := newAuthRouter(t, repo)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postJSON("/auth/login", `{"email":"user@test.local","password":"correctpass"}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("expected session to be registered, got %d", len(repo.sessions))
	}

	me := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range res.Result().Cookies() {
		me.AddCookie(c)
	}
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, me)
	if meRes.Code != http.StatusOK || meRes.Body.String() != testUserID {
		t.Fatalf("expected session user, got %d %q", meRes.Code, meRes.Body.String())
	}
}

func TestTokenGrantsAccess(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t)})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, postJSON("/auth/token", `{"email":"user@test.local","password":"correctpass"}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	me := httptest.NewRequest(http.MethodGet, "/me", nil)
	me.Header.Set("Authorization", "Bearer "+body.Data.AccessToken)
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, me)
	if meRes.Body.String() != testUserID {
		t.Fatalf("expected %s, got %q", testUserID, meRes.Body.String())
	}
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{})

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/me", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}

	bad := httptest.NewRequest(http.MethodGet, "/me", nil)
	bad.Header.Set("Authorization", "Bearer not-a-token")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, bad)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", res.Code)
	}
}
