package account

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/backoffice/internal/platform/httpx"
	"github.com/shopdesk/backoffice/internal/shared"
)

const maxAvatarBytes = 5 << 20

// Handler exposes the account endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
	r.Post("/avatar", h.uploadAvatar)
	r.Get("/avatar", h.downloadAvatar)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	res := h.service.GetProfile(r.Context(), shared.UserFromContext(r.Context()))
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	httpx.OK(w, http.StatusOK, res.Message, res.Data)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var form ProfileForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid profile payload")
		return
	}
	res := h.service.UpdateProfile(r.Context(), shared.UserFromContext(r.Context()), form)
	h.notify(r, res.Failure, res.Message)
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	httpx.OK(w, http.StatusOK, res.Message, res.Data)
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var file *AvatarFile
	if headers := r.MultipartForm.File["avatar"]; len(headers) > 0 {
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "could not read avatar")
			return
		}
		defer f.Close()
		file = &AvatarFile{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Size: fh.Size, Body: f}
	}

	res := h.service.UploadAvatar(r.Context(), shared.UserFromContext(r.Context()), file)
	h.notify(r, res.Failure, res.Message)
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	httpx.OK(w, http.StatusOK, res.Message, res.Data)
}

func (h *Handler) downloadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := h.service.GetProfile(ctx, shared.UserFromContext(ctx))
	if !profile.OK() {
		httpx.RespondError(w, profile.Failure)
		return
	}
	res := h.service.DownloadAvatar(ctx, profile.Data.AvatarURL)
	if !res.OK() {
		httpx.RespondError(w, res.Failure)
		return
	}
	avatar := res.Data
	defer avatar.Body.Close()
	if avatar.Object.ContentType != "" {
		w.Header().Set("Content-Type", avatar.Object.ContentType)
	}
	if avatar.Object.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(avatar.Object.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, avatar.Body); err != nil {
		h.logger.WarnContext(ctx, "stream avatar", slog.Any("error", err))
	}
}

func (h *Handler) notify(r *http.Request, failure *shared.Failure, message string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	if failure != nil {
		sess.AddNotice(shared.Notice{Level: "error", Message: failure.Message})
		return
	}
	sess.AddNotice(shared.Notice{Level: "success", Message: message})
}
