package repository

import (
	"context"

	"github.com/tablohq/backupd/internal/core/domain"
)

type JobFilter struct {
	DatabaseID    *string
	Status        *domain.JobStatus
	OperationType *domain.OperationType
	Limit         int
	Offset        int
}

// JobRepository persists job records. FindByID returns (nil, nil) when the
// job does not exist; List and Count return empty results when the backing
// table has not been created yet.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	FindByID(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	List(ctx context.Context, filter JobFilter) ([]*domain.Job, error)
	Count(ctx context.Context, filter JobFilter) (int, error)
}

// JobEventRepository is the append-only audit event log.
type JobEventRepository interface {
	Append(ctx context.Context, event *domain.JobAuditEvent) error
	ListByJob(ctx context.Context, jobID string) ([]*domain.JobAuditEvent, error)
}
