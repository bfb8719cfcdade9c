package role

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/rule"
)

// Repository defines persistence operations for roles.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	CreateRole(ctx context.Context, name, description string) (*Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (*Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListRoleRules(ctx context.Context, roleID int64) ([]rule.Rule, error)
	AttachRule(ctx context.Context, roleID, ruleID int64) error
	DetachRule(ctx context.Context, roleID, ruleID int64) error
	AssignToUser(ctx context.Context, userID, roleID int64) error
	RemoveFromUser(ctx context.Context, userID, roleID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRoles returns all roles ordered by id, without their rules.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches one role with its rules. Returns nil when absent.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (*Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rules, err := r.ListRoleRules(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Rules = rules
	return &role, nil
}

// CreateRole inserts a role. A name collision maps to ErrDuplicate.
func (r *PGRepository) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id, name, description, created_at, updated_at`,
		name, description)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &role, nil
}

// UpdateRole modifies an existing role. Returns nil when the id is unknown.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, name, description string) (*Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`,
		id, name, description)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapUniqueViolation(err)
	}
	return &role, nil
}

// DeleteRole removes a role. Returns httpx.ErrNotFound when nothing was deleted.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ListRoleRules returns the rules attached to a role.
func (r *PGRepository) ListRoleRules(ctx context.Context, roleID int64) ([]rule.Rule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.resource, r.scope, r.operation, r.description, r.created_at
		   FROM rules r JOIN role_rules rr ON rr.rule_id = r.id
		  WHERE rr.role_id = $1 ORDER BY r.id`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []rule.Rule
	for rows.Next() {
		var (
			item      rule.Rule
			scope     string
			operation string
		)
		if err := rows.Scan(&item.ID, &item.Resource, &scope, &operation, &item.Description, &item.CreatedAt); err != nil {
			return nil, err
		}
		parsedScope, err := rule.ParseScope(scope)
		if err != nil {
			return nil, err
		}
		parsedOperation, err := rule.ParseOperation(operation)
		if err != nil {
			return nil, err
		}
		item.Scope = parsedScope
		item.Operation = parsedOperation
		rules = append(rules, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// AttachRule links a catalog rule to a role.
func (r *PGRepository) AttachRule(ctx context.Context, roleID, ruleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_rules (role_id, rule_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, ruleID)
	return err
}

// DetachRule unlinks a catalog rule from a role.
func (r *PGRepository) DetachRule(ctx context.Context, roleID, ruleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_rules WHERE role_id = $1 AND rule_id = $2`, roleID, ruleID)
	return err
}

// AssignToUser grants a role to a user.
func (r *PGRepository) AssignToUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// RemoveFromUser revokes a role from a user.
func (r *PGRepository) RemoveFromUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return httpx.ErrDuplicate
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
