package account

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/backoffice/internal/platform/storage"
	"github.com/shopdesk/backoffice/internal/shared"
)

const userID = "0d6e2f1a-4b3c-4d5e-9f60-718293a4b5c6"

type profileRepo struct {
	profiles  map[string]Profile
	avatarErr error
}

func newProfileRepo() *profileRepo {
	return &profileRepo{profiles: map[string]Profile{}}
}

func (r *profileRepo) Get(_ context.Context, id string) (Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, pgx.ErrNoRows
	}
	return p, nil
}

func (r *profileRepo) Upsert(_ context.Context, p Profile) (Profile, error) {
	if p.AvatarURL == "" {
		p.AvatarURL = r.profiles[p.ID].AvatarURL
	}
	r.profiles[p.ID] = p
	return p, nil
}

func (r *profileRepo) SetAvatar(_ context.Context, id, path string) (Profile, error) {
	if r.avatarErr != nil {
		return Profile{}, r.avatarErr
	}
	p := r.profiles[id]
	p.ID = id
	p.AvatarURL = path
	r.profiles[id] = p
	return p, nil
}

type orphanRecorder struct{ keys []string }

func (o *orphanRecorder) ReportOrphans(_ context.Context, _ string, keys []string) error {
	o.keys = append(o.keys, keys...)
	return nil
}

func fixedRandom() float64 { return 0.25 }

func newTestService(repo RepositoryPort, store storage.Store, orphans OrphanReporter) *Service {
	return NewService(repo, store, nil, orphans, nil, Config{Bucket: "avatars", Random: fixedRandom})
}

func TestGetProfileMissingRowIsNotAnError(t *testing.T) {
	svc := newTestService(newProfileRepo(), storage.NewMemoryStore(), nil)

	res := svc.GetProfile(context.Background(), userID)
	require.True(t, res.OK())
	require.Equal(t, userID, res.Data.ID)
	require.Empty(t, res.Data.Username)
}

func TestGetProfileRequiresUser(t *testing.T) {
	svc := newTestService(newProfileRepo(), storage.NewMemoryStore(), nil)

	res := svc.GetProfile(context.Background(), "")
	require.False(t, res.OK())
	require.Equal(t, shared.KindAuth, res.Failure.Cause)
}

func TestUpdateProfileValidation(t *testing.T) {
	repo := newProfileRepo()
	svc := newTestService(repo, storage.NewMemoryStore(), nil)

	res := svc.UpdateProfile(context.Background(), userID, ProfileForm{
		FullName: "Ana",
		Username: "this-username-is-way-too-long",
		Website:  "x.io",
	})
	require.False(t, res.OK())
	require.Equal(t, shared.KindValidation, res.Failure.Cause)
	require.Contains(t, res.Failure.Fields, "full_name")
	require.Contains(t, res.Failure.Fields, "username")
	require.Contains(t, res.Failure.Fields, "website")
	require.Empty(t, repo.profiles)
}

func TestUpdateProfileUpserts(t *testing.T) {
	repo := newProfileRepo()
	svc := newTestService(repo, storage.NewMemoryStore(), nil)

	res := svc.UpdateProfile(context.Background(), userID, ProfileForm{
		FullName: "Ana Torres",
		Username: "anatorres",
		Website:  "https://ana.dev",
	})
	require.True(t, res.OK())
	require.Equal(t, "Profile updated successfully", res.Message)
	require.Equal(t, "anatorres", repo.profiles[userID].Username)
}

func TestUpdateProfileRejectsForeignAvatar(t *testing.T) {
	repo := newProfileRepo()
	svc := newTestService(repo, storage.NewMemoryStore(), nil)

	for _, path := range []string{"someone-else-0.5.png", userID + "-0.5.png/../x.png"} {
		res := svc.UpdateProfile(context.Background(), userID, ProfileForm{
			FullName:  "Ana Torres",
			Username:  "anatorres",
			Website:   "https://ana.dev",
			AvatarURL: path,
		})
		require.False(t, res.OK(), path)
		require.Equal(t, shared.KindValidation, res.Failure.Cause)
		require.Contains(t, res.Failure.Fields, "avatar_url")
	}
	require.Empty(t, repo.profiles)

	res := svc.UpdateProfile(context.Background(), userID, ProfileForm{
		FullName:  "Ana Torres",
		Username:  "anatorres",
		Website:   "https://ana.dev",
		AvatarURL: userID + "-0.5.png",
	})
	require.True(t, res.OK())
	require.Equal(t, userID+"-0.5.png", repo.profiles[userID].AvatarURL)
}

func TestUploadAvatarRequiresFile(t *testing.T) {
	svc := newTestService(newProfileRepo(), storage.NewMemoryStore(), nil)

	res := svc.UploadAvatar(context.Background(), userID, nil)
	require.False(t, res.OK())
	require.Equal(t, "You must select an image to upload.", res.Failure.Message)
	require.Equal(t, shared.KindValidation, res.Failure.Cause)
}

func TestUploadAvatarThenDownload(t *testing.T) {
	repo := newProfileRepo()
	store := storage.NewMemoryStore()
	svc := newTestService(repo, store, nil)
	ctx := context.Background()

	res := svc.UploadAvatar(ctx, userID, &AvatarFile{Filename: "me.jpeg", ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg")})
	require.True(t, res.OK())
	require.Equal(t, userID+"-0.25.jpeg", res.Data.AvatarURL)
	require.Equal(t, []string{userID + "-0.25.jpeg"}, store.Keys("avatars"))

	dl := svc.DownloadAvatar(ctx, res.Data.AvatarURL)
	require.True(t, dl.OK())
	defer dl.Data.Body.Close()
	body, err := io.ReadAll(dl.Data.Body)
	require.NoError(t, err)
	require.Equal(t, "jpg", string(body))
	require.Equal(t, "image/jpeg", dl.Data.Object.ContentType)
}

func TestUploadAvatarReportsOrphanWhenProfileWriteFails(t *testing.T) {
	repo := newProfileRepo()
	repo.avatarErr = errors.New("connection reset")
	orphans := &orphanRecorder{}
	svc := newTestService(repo, storage.NewMemoryStore(), orphans)

	res := svc.UploadAvatar(context.Background(), userID, &AvatarFile{Filename: "me.png", ContentType: "image/png", Body: strings.NewReader("png")})
	require.False(t, res.OK())
	require.Equal(t, "Could not save avatar", res.Failure.Message)
	require.Equal(t, []string{userID + "-0.25.png"}, orphans.keys)
}

func TestDownloadAvatarMissing(t *testing.T) {
	svc := newTestService(newProfileRepo(), storage.NewMemoryStore(), nil)

	res := svc.DownloadAvatar(context.Background(), "nobody-0.1.png")
	require.False(t, res.OK())
	require.Equal(t, shared.KindNotFound, res.Failure.Cause)

	res = svc.DownloadAvatar(context.Background(), "")
	require.Equal(t, shared.KindNotFound, res.Failure.Cause)
}
