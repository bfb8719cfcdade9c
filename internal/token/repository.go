package token

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository against the identities and tasks tables.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindUserByUsername fetches a user identity by username. Returns nil when
// no user exists.
func (r *PGRepository) FindUserByUsername(ctx context.Context, username string) (*UserAccount, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, username, password_hash,
		        COALESCE(failed_login_attempts, 0),
		        COALESCE(last_login_attempt, 'epoch'::timestamptz)
		   FROM identities WHERE kind = 'user' AND username = $1`,
		username)
	var account UserAccount
	if err := row.Scan(&account.ID, &account.OrganizationID, &account.Username, &account.PasswordHash,
		&account.FailedLoginAttempts, &account.LastLoginAttempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// UpdateLoginState records the outcome of a login attempt in one statement.
func (r *PGRepository) UpdateLoginState(ctx context.Context, userID int64, failedAttempts int, lastAttempt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE identities SET failed_login_attempts = $2, last_login_attempt = $3 WHERE id = $1`,
		userID, failedAttempts, lastAttempt)
	return err
}

// FindNodeByAPIKey fetches a node identity by its API key. Returns nil when
// no node matches.
func (r *PGRepository) FindNodeByAPIKey(ctx context.Context, apiKey string) (*NodeAccount, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, organization_id, name FROM identities WHERE kind = 'node' AND api_key = $1`,
		apiKey)
	var node NodeAccount
	if err := row.Scan(&node.ID, &node.OrganizationID, &node.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

// NodeAssignedToTask reports whether the node's organization participates
// in the task and the task is still running.
func (r *PGRepository) NodeAssignedToTask(ctx context.Context, nodeID, taskID int64) (bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1
		      FROM tasks t
		      JOIN task_organizations torg ON torg.task_id = t.id
		      JOIN identities n ON n.organization_id = torg.organization_id
		     WHERE t.id = $2 AND n.id = $1 AND n.kind = 'node' AND NOT t.completed
		 )`,
		nodeID, taskID)
	var assigned bool
	if err := row.Scan(&assigned); err != nil {
		return false, err
	}
	return assigned, nil
}

var _ Repository = (*PGRepository)(nil)
