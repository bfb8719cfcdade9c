package principal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository against the identities table, which
// holds both users and nodes discriminated by kind.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindIdentity fetches a persisted user or node by id. Returns nil when no
// record exists.
func (r *PGRepository) FindIdentity(ctx context.Context, id int64) (*Identity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, kind, organization_id, name, COALESCE(last_seen, 'epoch'::timestamptz) FROM identities WHERE id = $1`, id)
	var (
		identity Identity
		kind     string
	)
	if err := row.Scan(&identity.ID, &kind, &identity.OrganizationID, &identity.Name, &identity.LastSeen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	identity.Kind = parsed
	return &identity, nil
}

// TouchLastSeen records when the identity was last active. A single atomic
// UPDATE per request; concurrent requests may race on the value but cannot
// corrupt anything else.
func (r *PGRepository) TouchLastSeen(ctx context.Context, id int64, seen time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE identities SET last_seen = $2 WHERE id = $1`, id, seen)
	return err
}

var _ Repository = (*PGRepository)(nil)
