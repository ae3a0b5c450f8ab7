package account

import (
	"io"
	"time"

	"github.com/shopdesk/backoffice/internal/platform/storage"
)

// Profile is the public profile of a dashboard user.
type Profile struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Username  string     `json:"username"`
	Website   string     `json:"website"`
	AvatarURL string     `json:"avatar_url"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProfileForm is the editable part of a profile.
type ProfileForm struct {
	FullName  string `form:"full_name" json:"full_name" validate:"required,min=5,max=32"`
	Username  string `form:"username" json:"username" validate:"required,min=5,max=20"`
	Website   string `form:"website" json:"website" validate:"required,min=5,max=32"`
	AvatarURL string `form:"avatar_url" json:"avatar_url"`
}

// AvatarFile is the image picked for upload.
type AvatarFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Avatar is a downloaded avatar object. Callers close Body.
type Avatar struct {
	Body   io.ReadCloser
	Object storage.Object
}
