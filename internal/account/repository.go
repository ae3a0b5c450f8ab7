package account

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists profiles.
type Repository struct {
	db Querier
}

// NewRepository constructs Repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

const profileColumns = `id::text, COALESCE(full_name, ''), COALESCE(username, ''), COALESCE(website, ''), COALESCE(avatar_url, ''), updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Username, &p.Website, &p.AvatarURL, &p.UpdatedAt)
	return p, err
}

// Get returns pgx.ErrNoRows when the user has no profile yet.
func (r *Repository) Get(ctx context.Context, id string) (Profile, error) {
	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1::uuid`, id))
}

// Upsert writes every editable column.
func (r *Repository) Upsert(ctx context.Context, p Profile) (Profile, error) {
	return scanProfile(r.db.QueryRow(ctx, `INSERT INTO profiles (id, full_name, username, website, avatar_url, updated_at)
VALUES ($1::uuid, $2, $3, $4, NULLIF($5, ''), now())
ON CONFLICT (id) DO UPDATE SET
  full_name = EXCLUDED.full_name,
  username = EXCLUDED.username,
  website = EXCLUDED.website,
  avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url),
  updated_at = EXCLUDED.updated_at
RETURNING `+profileColumns, p.ID, p.FullName, p.Username, p.Website, p.AvatarURL))
}

// SetAvatar points the profile at a new avatar object.
func (r *Repository) SetAvatar(ctx context.Context, id, path string) (Profile, error) {
	return scanProfile(r.db.QueryRow(ctx, `INSERT INTO profiles (id, avatar_url, updated_at)
VALUES ($1::uuid, $2, now())
ON CONFLICT (id) DO UPDATE SET avatar_url = EXCLUDED.avatar_url, updated_at = EXCLUDED.updated_at
RETURNING `+profileColumns, id, path))
}
