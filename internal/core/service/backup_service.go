package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/pkg/ratelimit"
)

// Progress checkpoints of the backup pipeline. The export poll advances
// linearly through [pollProgressFloor, pollProgressCeil]; the remaining
// stages use fixed checkpoints.
const (
	backupProgressStarted    = 10
	pollProgressFloor        = 20
	pollProgressCeil         = 70
	backupProgressDownloaded = 75
	backupProgressUploading  = 85
)

// BackupService drives the export protocol for one job: start the export,
// poll on the bookmark until a signed URL appears, download the dump, and
// persist it into object storage under the database's artifact namespace.
type BackupService struct {
	jobs     *JobService
	platform PlatformClient
	store    ObjectStore
	webhooks *WebhookDispatcher

	pollInterval    time.Duration
	maxPollAttempts int
}

func NewBackupService(jobs *JobService, pc PlatformClient, store ObjectStore, webhooks *WebhookDispatcher, pollInterval time.Duration, maxPollAttempts int) *BackupService {
	return &BackupService{
		jobs:            jobs,
		platform:        pc,
		store:           store,
		webhooks:        webhooks,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
	}
}

// Run executes the backup pipeline to completion. Any returned error aborts
// the whole job; the dispatcher records the failure.
func (s *BackupService) Run(ctx context.Context, job *domain.Job) error {
	var table *platform.TableExport
	if job.OperationType == domain.OperationTableBackup {
		meta := job.Metadata.TableBackup
		if meta == nil {
			return NewValidationError("table backup job %s has no table metadata", job.ID)
		}
		table = &platform.TableExport{TableName: meta.TableName, Format: string(meta.Format)}
	}

	status, err := s.platform.StartExport(ctx, job.DatabaseID, table)
	if err != nil {
		return NewUpstreamError("export start failed: %s", err.Error())
	}
	s.progress(ctx, job.ID, backupProgressStarted)

	var lastBookmark string
	if !status.Ready() {
		status, lastBookmark, err = s.pollExport(ctx, job, status.Bookmark)
		if err != nil {
			return err
		}
	}

	data, err := s.platform.Download(ctx, status.SignedURL)
	if err != nil {
		return NewUpstreamError("dump download failed: %s", err.Error())
	}
	s.progress(ctx, job.ID, backupProgressDownloaded)

	key, artifact := s.describeArtifact(job, int64(len(data)), lastBookmark)
	s.progress(ctx, job.ID, backupProgressUploading)

	if err := s.store.Put(ctx, key, data, artifact); err != nil {
		return NewStorageError("failed to store artifact: %s", err.Error())
	}

	if err := s.jobs.Complete(ctx, job.ID, domain.JobStatusCompleted, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	log.WithFields(log.Fields{
		"job_id":      job.ID,
		"database_id": job.DatabaseID,
		"path":        key,
		"size":        len(data),
	}).Info("backup completed")

	payload := map[string]interface{}{
		"job_id":      job.ID,
		"database_id": job.DatabaseID,
		"path":        key,
		"size":        len(data),
	}
	if job.UserEmail != nil {
		payload["user_email"] = *job.UserEmail
	}
	s.webhooks.Fire(domain.WebhookBackupComplete, payload)

	return nil
}

// pollExport resends the last bookmark on a fixed interval until the export
// resolves to a signed URL. Progress advances linearly with the attempt
// count, mapped into [20,70]. Exhausting the attempt ceiling is an export
// timeout.
func (s *BackupService) pollExport(ctx context.Context, job *domain.Job, bookmark string) (*platform.ExportStatus, string, error) {
	var resolved *platform.ExportStatus

	err := ratelimit.Poll(ctx, s.pollInterval, s.maxPollAttempts, func(ctx context.Context, attempt int) (bool, error) {
		status, err := s.platform.PollExport(ctx, job.DatabaseID, bookmark)
		if err != nil {
			return false, err
		}
		if status.Bookmark != "" {
			bookmark = status.Bookmark
		}
		if status.Ready() {
			resolved = status
			return true, nil
		}

		span := pollProgressCeil - pollProgressFloor
		s.progress(ctx, job.ID, pollProgressFloor+attempt*span/s.maxPollAttempts)
		return false, nil
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrAttemptsExhausted) {
			return nil, "", NewExportTimeoutError("export did not resolve within %d poll attempts", s.maxPollAttempts)
		}
		return nil, "", NewUpstreamError("export poll failed: %s", err.Error())
	}

	return resolved, bookmark, nil
}

// describeArtifact builds the deterministic storage key and metadata for the
// dump produced by this job.
func (s *BackupService) describeArtifact(job *domain.Job, size int64, bookmark string) (string, domain.ArtifactMetadata) {
	now := time.Now().UTC()

	artifact := domain.ArtifactMetadata{
		DatabaseID: job.DatabaseID,
		Timestamp:  now,
		Size:       size,
		UserEmail:  job.UserEmail,
	}
	if bookmark != "" {
		artifact.Bookmark = &bookmark
	}

	var key string
	switch job.OperationType {
	case domain.OperationTableBackup:
		meta := job.Metadata.TableBackup
		key = domain.TableBackupKey(job.DatabaseID, meta.TableName, meta.Format, now)
		artifact.DatabaseName = meta.DatabaseName
		artifact.Source = "table"
	default:
		key = domain.BackupKey(job.DatabaseID, now)
		if meta := job.Metadata.Backup; meta != nil {
			artifact.DatabaseName = meta.DatabaseName
		}
		artifact.Source = "manual"
	}

	artifact.Key = key
	return key, artifact
}

// progress records a stage checkpoint; progress persistence failures are
// logged but never abort the pipeline.
func (s *BackupService) progress(ctx context.Context, jobID string, processed int) {
	if err := s.jobs.UpdateProgress(ctx, jobID, processed, nil); err != nil {
		log.WithError(err).WithField("job_id", jobID).Warn("failed to record progress")
	}
}
