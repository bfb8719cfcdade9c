package rule

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for the rule catalog.
type Repository interface {
	ListRules(ctx context.Context) ([]Rule, error)
	FindRule(ctx context.Context, resource string, scope Scope, operation Operation) (*Rule, error)
	EnsureRule(ctx context.Context, resource string, scope Scope, operation Operation, description string) (Rule, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRules returns every rule ordered by id.
func (r *PGRepository) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, resource, scope, operation, description, created_at FROM rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// FindRule fetches the rule identified by the triple, or nil when absent.
func (r *PGRepository) FindRule(ctx context.Context, resource string, scope Scope, operation Operation) (*Rule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, resource, scope, operation, description, created_at FROM rules WHERE resource = $1 AND scope = $2 AND operation = $3`,
		resource, string(scope), string(operation))
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// EnsureRule inserts the rule if it does not exist yet and returns the stored row.
func (r *PGRepository) EnsureRule(ctx context.Context, resource string, scope Scope, operation Operation, description string) (Rule, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO rules (resource, scope, operation, description)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (resource, scope, operation) DO UPDATE SET description = EXCLUDED.description
		 RETURNING id, resource, scope, operation, description, created_at`,
		resource, string(scope), string(operation), description)
	return scanRule(row)
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		rule      Rule
		scope     string
		operation string
	)
	if err := row.Scan(&rule.ID, &rule.Resource, &scope, &operation, &rule.Description, &rule.CreatedAt); err != nil {
		return Rule{}, err
	}
	parsedScope, err := ParseScope(scope)
	if err != nil {
		return Rule{}, err
	}
	parsedOperation, err := ParseOperation(operation)
	if err != nil {
		return Rule{}, err
	}
	rule.Scope = parsedScope
	rule.Operation = parsedOperation
	return rule, nil
}

var _ Repository = (*PGRepository)(nil)
