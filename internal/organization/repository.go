package organization

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for organizations.
type Repository interface {
	ListOrganizations(ctx context.Context) ([]Organization, error)
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	CreateOrganization(ctx context.Context, name, address, domain string) (*Organization, error)
	SetPublicKey(ctx context.Context, id int64, publicKey string) (*Organization, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const organizationColumns = `id, name, address, domain, COALESCE(public_key, ''), created_at, updated_at`

// ListOrganizations returns all organizations ordered by id.
func (r *PGRepository) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orgs []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Address, &org.Domain, &org.PublicKey, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetOrganization fetches one organization. Returns nil when absent.
func (r *PGRepository) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Address, &org.Domain, &org.PublicKey, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// CreateOrganization inserts a new organization without a key; the key is
// uploaded later by the organization's node.
func (r *PGRepository) CreateOrganization(ctx context.Context, name, address, domain string) (*Organization, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO organizations (name, address, domain) VALUES ($1, $2, $3) RETURNING `+organizationColumns,
		name, address, domain)
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Address, &org.Domain, &org.PublicKey, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}

// SetPublicKey replaces the organization's encryption key. Returns nil when
// the id is unknown.
func (r *PGRepository) SetPublicKey(ctx context.Context, id int64, publicKey string) (*Organization, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE organizations SET public_key = $2, updated_at = now() WHERE id = $1 RETURNING `+organizationColumns,
		id, publicKey)
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Address, &org.Domain, &org.PublicKey, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

var _ Repository = (*PGRepository)(nil)
