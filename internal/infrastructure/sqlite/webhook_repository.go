package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
)

type webhookRepository struct {
	db *DB
}

func NewWebhookRepository(db *DB) repository.WebhookRepository {
	return &webhookRepository{db: db}
}

func (r *webhookRepository) Create(ctx context.Context, reg *domain.WebhookRegistration) error {
	eventsJSON, err := json.Marshal(reg.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now

	query := `
		INSERT INTO webhook (url, secret, events, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		reg.URL,
		NullString(reg.Secret),
		string(eventsJSON),
		reg.Enabled,
		reg.CreatedAt,
		reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	reg.ID = id

	return nil
}

func (r *webhookRepository) FindByID(ctx context.Context, id int64) (*domain.WebhookRegistration, error) {
	query := `
		SELECT id, url, secret, events, enabled, created_at, updated_at
		FROM webhook
		WHERE id = ?
	`

	reg, err := scanWebhook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows || isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return reg, nil
}

func (r *webhookRepository) Update(ctx context.Context, reg *domain.WebhookRegistration) error {
	eventsJSON, err := json.Marshal(reg.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	reg.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE webhook
		SET url = ?, secret = ?, events = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		reg.URL,
		NullString(reg.Secret),
		string(eventsJSON),
		reg.Enabled,
		reg.UpdatedAt,
		reg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook not found: %d", reg.ID)
	}

	return nil
}

func (r *webhookRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook not found: %d", id)
	}

	return nil
}

func (r *webhookRepository) List(ctx context.Context) ([]*domain.WebhookRegistration, error) {
	query := `
		SELECT id, url, secret, events, enabled, created_at, updated_at
		FROM webhook
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var regs []*domain.WebhookRegistration
	for rows.Next() {
		reg, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}

	return regs, nil
}

func scanWebhook(row rowScanner) (*domain.WebhookRegistration, error) {
	var reg domain.WebhookRegistration
	var secret sql.NullString
	var eventsJSON string

	err := row.Scan(
		&reg.ID,
		&reg.URL,
		&secret,
		&eventsJSON,
		&reg.Enabled,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if secret.Valid {
		reg.Secret = &secret.String
	}
	if err := json.Unmarshal([]byte(eventsJSON), &reg.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	return &reg, nil
}
