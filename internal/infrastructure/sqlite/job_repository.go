package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
)

type jobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) repository.JobRepository {
	return &jobRepository{db: db}
}

const jobColumns = `job_id, database_id, operation_type, status, total_items, processed_items,
	error_count, percentage, started_at, completed_at, user_email, metadata`

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	metaJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO job (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Valid: true, Time: *job.CompletedAt}
	}

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.DatabaseID,
		job.OperationType,
		job.Status,
		job.TotalItems,
		job.ProcessedItems,
		job.ErrorCount,
		job.Percentage,
		job.StartedAt,
		completedAt,
		NullString(job.UserEmail),
		string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (r *jobRepository) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM job WHERE job_id = ?`

	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows || isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) Update(ctx context.Context, job *domain.Job) error {
	metaJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE job
		SET status = ?, total_items = ?, processed_items = ?, error_count = ?,
			percentage = ?, completed_at = ?, metadata = ?
		WHERE job_id = ?
	`

	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Valid: true, Time: *job.CompletedAt}
	}

	result, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.TotalItems,
		job.ProcessedItems,
		job.ErrorCount,
		job.Percentage,
		completedAt,
		string(metaJSON),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", job.ID)
	}

	return nil
}

func (r *jobRepository) List(ctx context.Context, filter repository.JobFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM job WHERE 1=1`
	args := []interface{}{}

	if filter.DatabaseID != nil {
		query += " AND database_id = ?"
		args = append(args, *filter.DatabaseID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.OperationType != nil {
		query += " AND operation_type = ?"
		args = append(args, *filter.OperationType)
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := r.scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

func (r *jobRepository) Count(ctx context.Context, filter repository.JobFilter) (int, error) {
	query := `SELECT COUNT(*) FROM job WHERE 1=1`
	args := []interface{}{}

	if filter.DatabaseID != nil {
		query += " AND database_id = ?"
		args = append(args, *filter.DatabaseID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.OperationType != nil {
		query += " AND operation_type = ?"
		args = append(args, *filter.OperationType)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		if isMissingTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJobFields(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var metaJSON string
	var completedAt sql.NullTime
	var userEmail sql.NullString

	err := row.Scan(
		&job.ID,
		&job.DatabaseID,
		&job.OperationType,
		&job.Status,
		&job.TotalItems,
		&job.ProcessedItems,
		&job.ErrorCount,
		&job.Percentage,
		&job.StartedAt,
		&completedAt,
		&userEmail,
		&metaJSON,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if userEmail.Valid {
		job.UserEmail = &userEmail.String
	}

	if err := json.Unmarshal([]byte(metaJSON), &job.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &job, nil
}

func (r *jobRepository) scanJob(row *sql.Row) (*domain.Job, error) {
	return scanJobFields(row)
}

func (r *jobRepository) scanJobRow(rows *sql.Rows) (*domain.Job, error) {
	job, err := scanJobFields(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}
