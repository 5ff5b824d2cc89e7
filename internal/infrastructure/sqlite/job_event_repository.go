package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
)

type jobEventRepository struct {
	db *DB
}

func NewJobEventRepository(db *DB) repository.JobEventRepository {
	return &jobEventRepository{db: db}
}

func (r *jobEventRepository) Append(ctx context.Context, event *domain.JobAuditEvent) error {
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO job_event (job_id, event_type, user_email, timestamp, details)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.JobID,
		event.EventType,
		NullString(event.UserEmail),
		event.Timestamp,
		string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append job event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id

	return nil
}

func (r *jobEventRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.JobAuditEvent, error) {
	query := `
		SELECT id, job_id, event_type, user_email, timestamp, details
		FROM job_event
		WHERE job_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	defer rows.Close()

	var events []*domain.JobAuditEvent
	for rows.Next() {
		var event domain.JobAuditEvent
		var detailsJSON string
		var userEmail sql.NullString

		if err := rows.Scan(&event.ID, &event.JobID, &event.EventType, &userEmail, &event.Timestamp, &detailsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		if userEmail.Valid {
			event.UserEmail = &userEmail.String
		}
		if err := json.Unmarshal([]byte(detailsJSON), &event.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job events: %w", err)
	}

	return events, nil
}
