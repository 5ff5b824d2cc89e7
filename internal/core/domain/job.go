package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends a job's lifecycle. Terminal jobs
// are immutable.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type OperationType string

const (
	OperationBackup      OperationType = "backup"
	OperationTableBackup OperationType = "table_backup"
	OperationRestore     OperationType = "restore"
)

// TableExportFormat is the dump format for table-scoped backups.
type TableExportFormat string

const (
	FormatSQL  TableExportFormat = "sql"
	FormatCSV  TableExportFormat = "csv"
	FormatJSON TableExportFormat = "json"
)

func (f TableExportFormat) Valid() bool {
	switch f {
	case FormatSQL, FormatCSV, FormatJSON:
		return true
	}
	return false
}

// BackupMetadata describes a whole-database backup job.
type BackupMetadata struct {
	DatabaseName string `json:"database_name"`
}

// TableBackupMetadata describes a table-scoped backup job.
type TableBackupMetadata struct {
	DatabaseName string            `json:"database_name"`
	TableName    string            `json:"table_name"`
	Format       TableExportFormat `json:"format"`
}

// RestoreMetadata describes a restore job. Path is the object-storage key of
// the artifact being restored.
type RestoreMetadata struct {
	Path string `json:"path"`
}

// JobMetadata is a tagged union keyed by the job's operation type: exactly
// the variant matching OperationType is set.
type JobMetadata struct {
	Backup      *BackupMetadata      `json:"backup,omitempty"`
	TableBackup *TableBackupMetadata `json:"table_backup,omitempty"`
	Restore     *RestoreMetadata     `json:"restore,omitempty"`
}

// Validate checks that the variant matching op is set and well formed.
func (m JobMetadata) Validate(op OperationType) error {
	switch op {
	case OperationBackup:
		if m.Backup == nil {
			return fmt.Errorf("backup metadata is required")
		}
	case OperationTableBackup:
		if m.TableBackup == nil {
			return fmt.Errorf("table backup metadata is required")
		}
		if m.TableBackup.TableName == "" {
			return fmt.Errorf("table_name is required")
		}
		if !m.TableBackup.Format.Valid() {
			return fmt.Errorf("format must be one of sql, csv, json")
		}
	case OperationRestore:
		if m.Restore == nil {
			return fmt.Errorf("restore metadata is required")
		}
		if m.Restore.Path == "" {
			return fmt.Errorf("path is required")
		}
	default:
		return fmt.Errorf("unknown operation type: %s", op)
	}
	return nil
}

// Job is a tracked unit of asynchronous backup or restore work. Progress is
// reported in processed/total items; TotalItems is fixed at 100 so the
// derived percentage maps directly onto pipeline stage progress.
type Job struct {
	ID             string        `db:"job_id"`
	DatabaseID     string        `db:"database_id"`
	OperationType  OperationType `db:"operation_type"`
	Status         JobStatus     `db:"status"`
	TotalItems     int           `db:"total_items"`
	ProcessedItems int           `db:"processed_items"`
	ErrorCount     int           `db:"error_count"`
	Percentage     float64       `db:"percentage"`
	StartedAt      time.Time     `db:"started_at"`
	CompletedAt    *time.Time    `db:"completed_at"`
	UserEmail      *string       `db:"user_email"`
	Metadata       JobMetadata   `db:"-"`
}

// NewJob creates a job record. The actor starts immediately, so there is no
// separate queued phase: the record is written as running.
func NewJob(databaseID string, op OperationType, userEmail *string, metadata JobMetadata) *Job {
	return &Job{
		ID:            uuid.New().String(),
		DatabaseID:    databaseID,
		OperationType: op,
		Status:        JobStatusRunning,
		TotalItems:    100,
		StartedAt:     time.Now().UTC(),
		UserEmail:     userEmail,
		Metadata:      metadata,
	}
}

// SetProgress updates the processed/total counters and recomputes the
// percentage, clamped to [0,100].
func (j *Job) SetProgress(processed int, total *int) {
	j.ProcessedItems = processed
	if total != nil && *total > 0 {
		j.TotalItems = *total
	}

	if j.TotalItems <= 0 {
		j.Percentage = 0
		return
	}
	pct := float64(j.ProcessedItems) / float64(j.TotalItems) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.Percentage = pct
}

// Finish moves the job into a terminal status. Percentage is forced to 100
// only for completed jobs.
func (j *Job) Finish(status JobStatus, processed, errorCount *int) {
	now := time.Now().UTC()
	j.CompletedAt = &now
	j.Status = status

	if processed != nil {
		j.ProcessedItems = *processed
	}
	if errorCount != nil {
		j.ErrorCount = *errorCount
	}
	if status == JobStatusCompleted {
		j.ProcessedItems = j.TotalItems
		j.Percentage = 100
	}
}

func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}
