package audit

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRepository reads audit_logs.
type PGRepository struct {
	db Querier
}

// NewRepository constructs PGRepository.
func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

const windowSQL = `SELECT occurred_at, COALESCE(actor_id::text, ''), action, entity, entity_id, meta::text
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3 = '' OR actor_id::text = $3)
  AND ($4 = '' OR entity = $4)
  AND ($5 = '' OR entity_id = $5)
  AND ($6 = '' OR action = $6)
ORDER BY occurred_at DESC, id DESC
OFFSET $7
LIMIT NULLIF($8, 0)`

// Window implements Repository.
func (r *PGRepository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := r.db.Query(ctx, windowSQL,
		optionalTime(f.From), optionalTime(f.To),
		strings.TrimSpace(f.Actor), strings.TrimSpace(f.Entity), strings.TrimSpace(f.EntityID), strings.TrimSpace(f.Action),
		offset, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var out TimelineRow
		err := row.Scan(&out.At, &out.Actor, &out.Action, &out.Entity, &out.EntityID, &out.Meta)
		return out, err
	})
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
