package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
)

// JobService is the job-tracking ledger: job records plus the append-only
// audit event log.
type JobService struct {
	jobRepo   repository.JobRepository
	eventRepo repository.JobEventRepository
}

func NewJobService(jobRepo repository.JobRepository, eventRepo repository.JobEventRepository) *JobService {
	return &JobService{
		jobRepo:   jobRepo,
		eventRepo: eventRepo,
	}
}

// Create persists a new job record and logs its "started" audit event.
func (s *JobService) Create(ctx context.Context, job *domain.Job) error {
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	details := map[string]interface{}{
		"operation_type": string(job.OperationType),
		"database_id":    job.DatabaseID,
	}
	if err := s.LogEvent(ctx, job.ID, domain.EventJobStarted, job.UserEmail, details); err != nil {
		log.WithError(err).WithField("job_id", job.ID).Warn("failed to log started event")
	}

	return nil
}

// UpdateProgress recomputes the job's percentage from the processed counter.
// Callers are responsible for monotonic inputs; terminal jobs are never
// touched.
func (s *JobService) UpdateProgress(ctx context.Context, jobID string, processed int, total *int) error {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return NewNotFoundError("job not found: %s", jobID)
	}
	if job.IsTerminal() {
		log.WithField("job_id", jobID).Debug("ignoring progress update for terminal job")
		return nil
	}

	job.SetProgress(processed, total)
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return nil
}

// Complete moves a job into a terminal status, forces percentage to 100 for
// completed jobs, and appends the terminal audit event. Completing an
// already-terminal job is a no-op: terminal state is immutable.
func (s *JobService) Complete(ctx context.Context, jobID string, status domain.JobStatus, processed, errorCount *int, errorMessage *string) error {
	if !status.IsTerminal() {
		return NewValidationError("status %s is not terminal", status)
	}

	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return NewNotFoundError("job not found: %s", jobID)
	}
	if job.IsTerminal() {
		log.WithFields(log.Fields{
			"job_id": jobID,
			"status": job.Status,
		}).Debug("job already terminal, ignoring completion")
		return nil
	}

	job.Finish(status, processed, errorCount)
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	details := map[string]interface{}{
		"status":          string(status),
		"processed_items": job.ProcessedItems,
	}
	if job.ErrorCount > 0 {
		details["error_count"] = job.ErrorCount
	}
	if errorMessage != nil {
		details["error"] = *errorMessage
	}

	eventType := domain.EventJobCompleted
	switch status {
	case domain.JobStatusFailed:
		eventType = domain.EventJobFailed
	case domain.JobStatusCancelled:
		eventType = domain.EventJobCancelled
	}

	if err := s.LogEvent(ctx, jobID, eventType, job.UserEmail, details); err != nil {
		log.WithError(err).WithField("job_id", jobID).Warn("failed to log terminal event")
	}

	return nil
}

// LogEvent appends to the audit event log.
func (s *JobService) LogEvent(ctx context.Context, jobID, eventType string, userEmail *string, details map[string]interface{}) error {
	event := domain.NewJobAuditEvent(jobID, eventType, userEmail, details)
	return s.eventRepo.Append(ctx, event)
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, NewNotFoundError("job not found: %s", jobID)
	}
	return job, nil
}

// List returns jobs matching the filter.
func (s *JobService) List(ctx context.Context, filter repository.JobFilter) ([]*domain.Job, error) {
	return s.jobRepo.List(ctx, filter)
}

// Count returns the number of jobs matching the filter.
func (s *JobService) Count(ctx context.Context, filter repository.JobFilter) (int, error) {
	return s.jobRepo.Count(ctx, filter)
}

// ListEvents returns the audit trail of one job.
func (s *JobService) ListEvents(ctx context.Context, jobID string) ([]*domain.JobAuditEvent, error) {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, NewNotFoundError("job not found: %s", jobID)
	}
	return s.eventRepo.ListByJob(ctx, jobID)
}
