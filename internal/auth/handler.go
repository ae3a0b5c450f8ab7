package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopdesk/backoffice/internal/platform/httpx"
	"github.com/shopdesk/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/token", h.handleToken)
}

type credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

type sessionView struct {
	UserID  string          `json:"user_id"`
	Email   string          `json:"email"`
	Notices []shared.Notice `json:"notices,omitempty"`
}

type tokenView struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *Handler) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := httpx.DecodeJSON(r, &creds); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid credentials payload")
			return creds, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid form")
			return creds, false
		}
		creds = credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.RespondError(w, shared.Invalid("Please correct the highlighted fields", shared.FieldErrors(err)))
		return creds, false
	}
	return creds, true
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "CSRF token issued", map[string]string{"csrf_token": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	user, err := h.service.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		httpx.RespondError(w, &shared.Failure{Cause: shared.KindAuth, Message: "Invalid email or password", Err: err})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.ErrorContext(r.Context(), "session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(user.ID)
	sess.AddNotice(shared.Notice{Level: "success", Message: "Welcome back"})
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.WarnContext(r.Context(), "register session", slog.Any("error", err))
	}
	httpx.OK(w, http.StatusOK, "Signed in", sessionView{UserID: user.ID, Email: user.Email})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.WarnContext(r.Context(), "remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	token, expires, err := h.service.IssueToken(r.Context(), creds.Email, creds.Password)
	if err != nil {
		httpx.RespondError(w, &shared.Failure{Cause: shared.KindAuth, Message: "Invalid email or password", Err: err})
		return
	}
	httpx.OK(w, http.StatusOK, "Token issued", tokenView{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires})
}
