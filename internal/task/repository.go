package task

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for tasks and results.
type Repository interface {
	CreateTask(ctx context.Context, t *Task) (*Task, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	GetResult(ctx context.Context, id int64) (*Result, error)
	StoreResult(ctx context.Context, id int64, body, log string, finished time.Time) (*Result, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateTask inserts the task, its per-organization assignments, and an
// empty result row per assignment, all in one transaction.
func (r *PGRepository) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO tasks (name, image, description, initiator_kind, initiator_id, parent_task_id)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0))
		 RETURNING id, created_at`,
		t.Name, t.Image, t.Description, t.InitiatorKind, t.InitiatorID, t.ParentTaskID)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return nil, err
	}

	for i := range t.Organizations {
		assignment := &t.Organizations[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO task_organizations (task_id, organization_id, input) VALUES ($1, $2, $3)`,
			t.ID, assignment.OrganizationID, assignment.Input); err != nil {
			return nil, err
		}
		resultRow := tx.QueryRow(ctx,
			`INSERT INTO results (task_id, organization_id) VALUES ($1, $2) RETURNING id`,
			t.ID, assignment.OrganizationID)
		if err := resultRow.Scan(&assignment.ResultID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTask fetches a task with its assignments. Returns nil when absent.
func (r *PGRepository) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, image, description, initiator_kind, initiator_id, COALESCE(parent_task_id, 0), completed, created_at
		   FROM tasks WHERE id = $1`, id)
	var t Task
	if err := row.Scan(&t.ID, &t.Name, &t.Image, &t.Description, &t.InitiatorKind, &t.InitiatorID, &t.ParentTaskID, &t.Completed, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT torg.organization_id, torg.input, COALESCE(res.id, 0)
		   FROM task_organizations torg
		   LEFT JOIN results res ON res.task_id = torg.task_id AND res.organization_id = torg.organization_id
		  WHERE torg.task_id = $1 ORDER BY torg.organization_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.OrganizationID, &a.Input, &a.ResultID); err != nil {
			return nil, err
		}
		t.Organizations = append(t.Organizations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetResult fetches one result. Returns nil when absent.
func (r *PGRepository) GetResult(ctx context.Context, id int64) (*Result, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, task_id, organization_id, COALESCE(result, ''), COALESCE(log, ''),
		        COALESCE(started_at, 'epoch'::timestamptz), COALESCE(finished_at, 'epoch'::timestamptz)
		   FROM results WHERE id = $1`, id)
	var res Result
	if err := row.Scan(&res.ID, &res.TaskID, &res.OrganizationID, &res.Result, &res.Log, &res.StartedAt, &res.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// StoreResult records a node's answer and marks the task completed when
// every assignment has finished.
func (r *PGRepository) StoreResult(ctx context.Context, id int64, body, log string, finished time.Time) (*Result, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE results SET result = $2, log = $3, finished_at = $4 WHERE id = $1
		 RETURNING id, task_id, organization_id, COALESCE(result, ''), COALESCE(log, ''),
		           COALESCE(started_at, 'epoch'::timestamptz), COALESCE(finished_at, 'epoch'::timestamptz)`,
		id, body, log, finished)
	var res Result
	if err := row.Scan(&res.ID, &res.TaskID, &res.OrganizationID, &res.Result, &res.Log, &res.StartedAt, &res.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET completed = NOT EXISTS (
		    SELECT 1 FROM results WHERE task_id = $1 AND finished_at IS NULL
		 ) WHERE id = $1`, res.TaskID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &res, nil
}

var _ Repository = (*PGRepository)(nil)
