package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/shopdesk/backoffice/internal/platform/storage"
	"github.com/shopdesk/backoffice/internal/shared"
)

// ErrNoAvatar is reported when the profile has no avatar yet.
var ErrNoAvatar = errors.New("account: no avatar")

// RepositoryPort abstracts profile persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Profile, error)
	Upsert(ctx context.Context, p Profile) (Profile, error)
	SetAvatar(ctx context.Context, id, path string) (Profile, error)
}

// AuditPort records profile changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OrphanReporter receives avatars that were uploaded but never linked.
type OrphanReporter interface {
	ReportOrphans(ctx context.Context, bucket string, keys []string) error
}

// Config names the avatar bucket.
type Config struct {
	Bucket string
	Random func() float64
}

// Service manages the signed-in user's profile and avatar.
type Service struct {
	repo     RepositoryPort
	store    storage.Store
	audit    AuditPort
	orphans  OrphanReporter
	logger   *slog.Logger
	validate *validator.Validate
	cfg      Config
}

// NewService wires Service. audit and orphans may be nil.
func NewService(repo RepositoryPort, store storage.Store, audit AuditPort, orphans OrphanReporter, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "avatars"
	}
	return &Service{
		repo:     repo,
		store:    store,
		audit:    audit,
		orphans:  orphans,
		logger:   logger.With(slog.String("component", "account")),
		validate: shared.NewValidator(),
		cfg:      cfg,
	}
}

// GetProfile loads the profile. A user without a profile row gets an empty
// profile carrying their id.
func (s *Service) GetProfile(ctx context.Context, userID string) shared.Result[Profile] {
	if userID == "" {
		return shared.Fail[Profile](&shared.Failure{Cause: shared.KindAuth, Message: "Sign in to view your profile", Err: shared.ErrUnauthorized})
	}
	profile, err := s.repo.Get(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, shared.ErrNotFound) {
		return shared.Ok(Profile{ID: userID}, "Profile not set up yet")
	}
	if err != nil {
		return shared.Fail[Profile](shared.NewFailure(ctx, s.logger, err, "Could not load profile"))
	}
	return shared.Ok(profile, "Profile loaded")
}

// UpdateProfile validates form and upserts the profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, form ProfileForm) shared.Result[Profile] {
	if userID == "" {
		return shared.Fail[Profile](&shared.Failure{Cause: shared.KindAuth, Message: "Sign in to update your profile", Err: shared.ErrUnauthorized})
	}
	form.FullName = strings.TrimSpace(form.FullName)
	form.Username = strings.TrimSpace(form.Username)
	form.Website = strings.TrimSpace(form.Website)
	form.AvatarURL = strings.TrimSpace(form.AvatarURL)
	fields := shared.FieldErrors(s.validate.Struct(form))
	if form.AvatarURL != "" && !ownsAvatar(userID, form.AvatarURL) {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields["avatar_url"] = "must be an avatar you uploaded"
	}
	if len(fields) > 0 {
		return shared.Fail[Profile](shared.Invalid("Please correct the highlighted fields", fields))
	}
	profile, err := s.repo.Upsert(ctx, Profile{
		ID:        userID,
		FullName:  form.FullName,
		Username:  form.Username,
		Website:   form.Website,
		AvatarURL: form.AvatarURL,
	})
	if err != nil {
		return shared.Fail[Profile](shared.NewFailure(ctx, s.logger, err, "Could not update profile"))
	}
	s.record(ctx, userID, "profile.update", map[string]any{"username": profile.Username})
	return shared.Ok(profile, "Profile updated successfully")
}

// UploadAvatar stores the file in the avatar bucket and links it to the profile.
func (s *Service) UploadAvatar(ctx context.Context, userID string, file *AvatarFile) shared.Result[Profile] {
	if userID == "" {
		return shared.Fail[Profile](&shared.Failure{Cause: shared.KindAuth, Message: "Sign in to change your avatar", Err: shared.ErrUnauthorized})
	}
	if file == nil || file.Body == nil || file.Filename == "" {
		return shared.Fail[Profile](shared.Invalid("You must select an image to upload.", map[string]string{"avatar": "is required"}))
	}
	if !strings.HasPrefix(strings.ToLower(file.ContentType), "image/") {
		return shared.Fail[Profile](shared.Invalid("Avatar must be an image", map[string]string{"avatar": "must be an image"}))
	}

	path := storage.ObjectName(userID, file.Filename, s.cfg.Random)
	if err := s.store.Upload(ctx, s.cfg.Bucket, path, file.Body, file.Size, file.ContentType); err != nil {
		return shared.Fail[Profile](shared.NewFailure(ctx, s.logger, err, "Could not upload avatar"))
	}
	profile, err := s.repo.SetAvatar(ctx, userID, path)
	if err != nil {
		if s.orphans != nil {
			if oerr := s.orphans.ReportOrphans(context.WithoutCancel(ctx), s.cfg.Bucket, []string{path}); oerr != nil {
				s.logger.WarnContext(ctx, "report orphaned avatar", slog.Any("error", oerr))
			}
		}
		return shared.Fail[Profile](shared.NewFailure(ctx, s.logger, err, "Could not save avatar"))
	}
	s.record(ctx, userID, "profile.avatar", map[string]any{"path": path})
	return shared.Ok(profile, "Avatar updated successfully")
}

// DownloadAvatar opens an avatar object.
func (s *Service) DownloadAvatar(ctx context.Context, path string) shared.Result[Avatar] {
	if path == "" {
		return shared.Fail[Avatar](&shared.Failure{Cause: shared.KindNotFound, Message: "No avatar uploaded", Err: ErrNoAvatar})
	}
	body, obj, err := s.store.Download(ctx, s.cfg.Bucket, path)
	if err != nil {
		return shared.Fail[Avatar](shared.NewFailure(ctx, s.logger, err, "Could not download avatar"))
	}
	return shared.Ok(Avatar{Body: body, Object: obj}, "")
}

// ownsAvatar reports whether path was named by UploadAvatar for userID.
func ownsAvatar(userID, path string) bool {
	return strings.HasPrefix(path, userID+"-") && !strings.Contains(path, "/")
}

func (s *Service) record(ctx context.Context, userID, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: userID, Action: action, Entity: "profile", EntityID: userID, Meta: meta}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
