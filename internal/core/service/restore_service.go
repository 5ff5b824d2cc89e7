package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/pkg/ratelimit"
)

// Progress checkpoints of the restore pipeline.
const (
	restoreProgressFetched  = 10
	restoreProgressDigested = 20
	restoreProgressSlot     = 30
	restoreProgressUploaded = 60
	restoreProgressIngest   = 70
	restoreProgressCeil     = 95
)

// RestoreService drives the import protocol for one job: fetch the artifact
// from object storage, compute its digest, request an upload slot, upload the
// content, and poll ingestion to completion.
type RestoreService struct {
	jobs     *JobService
	platform PlatformClient
	store    ObjectStore
	webhooks *WebhookDispatcher

	pollInterval    time.Duration
	maxPollAttempts int

	// strictDigest turns the documented digest-mismatch leniency into a hard
	// failure. Off by default: the platform ingests the content it received
	// regardless, and availability has historically won over integrity here.
	strictDigest bool
}

func NewRestoreService(jobs *JobService, pc PlatformClient, store ObjectStore, webhooks *WebhookDispatcher, pollInterval time.Duration, maxPollAttempts int, strictDigest bool) *RestoreService {
	return &RestoreService{
		jobs:            jobs,
		platform:        pc,
		store:           store,
		webhooks:        webhooks,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
		strictDigest:    strictDigest,
	}
}

// Run executes the restore pipeline to completion. Any returned error aborts
// the whole job; the dispatcher records the failure.
func (s *RestoreService) Run(ctx context.Context, job *domain.Job) error {
	meta := job.Metadata.Restore
	if meta == nil {
		return NewValidationError("restore job %s has no restore metadata", job.ID)
	}

	data, artifact, err := s.store.Get(ctx, meta.Path)
	if err != nil {
		return NewStorageError("failed to fetch artifact: %s", err.Error())
	}
	if data == nil {
		return NewNotFoundError("artifact not found: %s", meta.Path)
	}
	s.progress(ctx, job.ID, restoreProgressFetched)

	sum := md5.Sum(data)
	digest := hex.EncodeToString(sum[:])
	s.progress(ctx, job.ID, restoreProgressDigested)

	slot, err := s.platform.InitImport(ctx, job.DatabaseID, digest, int64(len(data)))
	if err != nil {
		return NewUpstreamError("import init failed: %s", err.Error())
	}
	s.progress(ctx, job.ID, restoreProgressSlot)

	reported, err := s.platform.Upload(ctx, slot.UploadURL, data)
	if err != nil {
		return NewUpstreamError("upload failed: %s", err.Error())
	}
	if reported != "" && reported != digest {
		if s.strictDigest {
			return NewIngestFailedError("digest mismatch: storage reported %s, computed %s", reported, digest)
		}
		log.WithFields(log.Fields{
			"job_id":   job.ID,
			"reported": reported,
			"computed": digest,
		}).Warn("storage-reported digest differs from computed digest, proceeding with ingestion")
	}
	s.progress(ctx, job.ID, restoreProgressUploaded)

	if err := s.platform.StartIngest(ctx, job.DatabaseID); err != nil {
		return NewUpstreamError("ingest start failed: %s", err.Error())
	}
	s.progress(ctx, job.ID, restoreProgressIngest)

	if err := s.pollIngest(ctx, job); err != nil {
		return err
	}

	if err := s.jobs.Complete(ctx, job.ID, domain.JobStatusCompleted, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	log.WithFields(log.Fields{
		"job_id":      job.ID,
		"database_id": job.DatabaseID,
		"path":        meta.Path,
		"size":        len(data),
	}).Info("restore completed")

	payload := map[string]interface{}{
		"job_id":      job.ID,
		"database_id": job.DatabaseID,
		"path":        meta.Path,
		"size":        len(data),
	}
	if artifact != nil && artifact.DatabaseName != "" {
		payload["database_name"] = artifact.DatabaseName
	}
	if job.UserEmail != nil {
		payload["user_email"] = *job.UserEmail
	}
	s.webhooks.Fire(domain.WebhookRestoreComplete, payload)

	return nil
}

// pollIngest checks ingestion status until the platform reports a terminal
// state. An explicit error aborts; exhausting the ceiling is an ingest
// timeout.
func (s *RestoreService) pollIngest(ctx context.Context, job *domain.Job) error {
	err := ratelimit.Poll(ctx, s.pollInterval, s.maxPollAttempts, func(ctx context.Context, attempt int) (bool, error) {
		status, err := s.platform.PollIngest(ctx, job.DatabaseID)
		if err != nil {
			return false, err
		}
		if status.Err != "" {
			return false, NewIngestFailedError("ingestion failed: %s", status.Err)
		}
		if status.Done {
			return true, nil
		}

		span := restoreProgressCeil - restoreProgressIngest
		s.progress(ctx, job.ID, restoreProgressIngest+attempt*span/s.maxPollAttempts)
		return false, nil
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrAttemptsExhausted) {
			return NewIngestTimeoutError("ingestion did not finish within %d poll attempts", s.maxPollAttempts)
		}
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return err
		}
		return NewUpstreamError("ingest poll failed: %s", err.Error())
	}
	return nil
}

func (s *RestoreService) progress(ctx context.Context, jobID string, processed int) {
	if err := s.jobs.UpdateProgress(ctx, jobID, processed, nil); err != nil {
		log.WithError(err).WithField("job_id", jobID).Warn("failed to record progress")
	}
}
