package permission

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consortia/consortia/internal/rule"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListEffectiveRules returns the user's direct rules unioned with the rules
// of every role the user holds, deduplicated by the database.
func (r *PGRepository) ListEffectiveRules(ctx context.Context, userID int64) ([]rule.Rule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.resource, r.scope, r.operation, r.description, r.created_at
		   FROM rules r
		   JOIN user_rules ur ON ur.rule_id = r.id
		  WHERE ur.user_id = $1
		 UNION
		 SELECT r.id, r.resource, r.scope, r.operation, r.description, r.created_at
		   FROM rules r
		   JOIN role_rules rr ON rr.rule_id = r.id
		   JOIN user_roles uro ON uro.role_id = rr.role_id
		  WHERE uro.user_id = $1`,
		userID)
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

var _ Repository = (*PGRepository)(nil)
