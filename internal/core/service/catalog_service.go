package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/core/domain"
)

// CatalogService is the request-facing layer: it creates jobs, hands them to
// the dispatcher, and exposes list/download/delete operations directly over
// the artifact store. Delete paths validate the tenant prefix before any
// storage call.
type CatalogService struct {
	jobs       *JobService
	dispatcher *Dispatcher
	backup     *BackupService
	restore    *RestoreService
	store      ObjectStore
	platform   PlatformClient
}

func NewCatalogService(jobs *JobService, dispatcher *Dispatcher, backup *BackupService, restore *RestoreService, store ObjectStore, pc PlatformClient) *CatalogService {
	return &CatalogService{
		jobs:       jobs,
		dispatcher: dispatcher,
		backup:     backup,
		restore:    restore,
		store:      store,
		platform:   pc,
	}
}

// StartBackup creates a whole-database backup job and dispatches it. The
// returned job is already running; the caller reports it as queued.
func (s *CatalogService) StartBackup(ctx context.Context, databaseID, databaseName string, userEmail *string) (*domain.Job, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if databaseID == "" {
		return nil, NewValidationError("database id is required")
	}

	metadata := domain.JobMetadata{Backup: &domain.BackupMetadata{DatabaseName: databaseName}}
	job := domain.NewJob(databaseID, domain.OperationBackup, userEmail, metadata)

	return s.createAndDispatch(ctx, job, func(ctx context.Context) error {
		return s.backup.Run(ctx, job)
	})
}

// StartTableBackup creates a table-scoped backup job and dispatches it.
func (s *CatalogService) StartTableBackup(ctx context.Context, databaseID, databaseName, tableName string, format domain.TableExportFormat, userEmail *string) (*domain.Job, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if databaseID == "" {
		return nil, NewValidationError("database id is required")
	}

	metadata := domain.JobMetadata{TableBackup: &domain.TableBackupMetadata{
		DatabaseName: databaseName,
		TableName:    tableName,
		Format:       format,
	}}
	if err := metadata.Validate(domain.OperationTableBackup); err != nil {
		return nil, NewValidationError("%s", err.Error())
	}
	job := domain.NewJob(databaseID, domain.OperationTableBackup, userEmail, metadata)

	return s.createAndDispatch(ctx, job, func(ctx context.Context) error {
		return s.backup.Run(ctx, job)
	})
}

// StartRestore creates a restore job for a stored artifact and dispatches
// it. The artifact must exist and belong to the target database.
func (s *CatalogService) StartRestore(ctx context.Context, databaseID, path string, userEmail *string) (*domain.Job, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if databaseID == "" {
		return nil, NewValidationError("database id is required")
	}
	if path == "" {
		return nil, NewValidationError("path is required")
	}
	if !domain.KeyOwnedBy(databaseID, path) {
		return nil, NewTenantIsolationError("path %s does not belong to database %s", path, databaseID)
	}

	artifact, err := s.store.Head(ctx, path)
	if err != nil {
		return nil, NewStorageError("failed to check artifact: %s", err.Error())
	}
	if artifact == nil {
		return nil, NewNotFoundError("artifact not found: %s", path)
	}

	metadata := domain.JobMetadata{Restore: &domain.RestoreMetadata{Path: path}}
	job := domain.NewJob(databaseID, domain.OperationRestore, userEmail, metadata)

	return s.createAndDispatch(ctx, job, func(ctx context.Context) error {
		return s.restore.Run(ctx, job)
	})
}

func (s *CatalogService) createAndDispatch(ctx context.Context, job *domain.Job, run func(ctx context.Context) error) (*domain.Job, error) {
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Submit(job, run); err != nil {
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}
	return job, nil
}

// ListArtifacts lists artifacts inside the database's own namespace.
func (s *CatalogService) ListArtifacts(ctx context.Context, databaseID string) ([]domain.ArtifactMetadata, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if databaseID == "" {
		return nil, NewValidationError("database id is required")
	}
	artifacts, err := s.store.List(ctx, domain.ArtifactKeyPrefix(databaseID))
	if err != nil {
		return nil, NewStorageError("failed to list artifacts: %s", err.Error())
	}
	return artifacts, nil
}

// Download fetches one artifact's content.
func (s *CatalogService) Download(ctx context.Context, databaseID, path string) ([]byte, *domain.ArtifactMetadata, error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	if !domain.KeyOwnedBy(databaseID, path) {
		return nil, nil, NewTenantIsolationError("path %s does not belong to database %s", path, databaseID)
	}

	data, meta, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, nil, NewStorageError("failed to fetch artifact: %s", err.Error())
	}
	if data == nil {
		return nil, nil, NewNotFoundError("artifact not found: %s", path)
	}
	return data, meta, nil
}

// DeleteArtifact removes one artifact. The tenant prefix is validated before
// the storage layer is touched.
func (s *CatalogService) DeleteArtifact(ctx context.Context, databaseID, path string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !domain.KeyOwnedBy(databaseID, path) {
		return NewTenantIsolationError("path %s does not belong to database %s", path, databaseID)
	}

	if err := s.store.Delete(ctx, path); err != nil {
		return NewStorageError("failed to delete artifact: %s", err.Error())
	}
	return nil
}

// BulkDelete removes a set of artifacts. All paths are validated against the
// tenant prefix before any deletion happens; one path outside the namespace
// rejects the whole request.
func (s *CatalogService) BulkDelete(ctx context.Context, databaseID string, paths []string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, NewValidationError("no paths given")
	}
	for _, path := range paths {
		if !domain.KeyOwnedBy(databaseID, path) {
			return 0, NewTenantIsolationError("path %s does not belong to database %s", path, databaseID)
		}
	}

	deleted := 0
	for _, path := range paths {
		if err := s.store.Delete(ctx, path); err != nil {
			log.WithError(err).WithField("path", path).Warn("bulk delete: failed to delete artifact")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// DeleteAll removes every artifact in the database's namespace.
func (s *CatalogService) DeleteAll(ctx context.Context, databaseID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if databaseID == "" {
		return 0, NewValidationError("database id is required")
	}

	artifacts, err := s.store.List(ctx, domain.ArtifactKeyPrefix(databaseID))
	if err != nil {
		return 0, NewStorageError("failed to list artifacts: %s", err.Error())
	}

	deleted := 0
	for _, artifact := range artifacts {
		if err := s.store.Delete(ctx, artifact.Key); err != nil {
			log.WithError(err).WithField("path", artifact.Key).Warn("delete all: failed to delete artifact")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// FindOrphaned returns artifacts whose owning database no longer exists,
// found by diffing the artifact namespace against the platform's live
// database listing.
func (s *CatalogService) FindOrphaned(ctx context.Context) ([]domain.ArtifactMetadata, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	databases, err := s.platform.ListDatabases(ctx)
	if err != nil {
		return nil, NewUpstreamError("failed to list databases: %s", err.Error())
	}
	live := make(map[string]struct{}, len(databases))
	for _, db := range databases {
		live[db.ID] = struct{}{}
	}

	artifacts, err := s.store.List(ctx, domain.ArtifactNamespace)
	if err != nil {
		return nil, NewStorageError("failed to list artifacts: %s", err.Error())
	}

	var orphaned []domain.ArtifactMetadata
	for _, artifact := range artifacts {
		if _, ok := live[artifact.DatabaseID]; !ok {
			orphaned = append(orphaned, artifact)
		}
	}
	return orphaned, nil
}

// StorageStatus summarizes backup storage health for the status endpoint.
type StorageStatus struct {
	Reachable     bool   `json:"reachable"`
	Error         string `json:"error,omitempty"`
	ArtifactCount int    `json:"artifact_count"`
	DatabaseCount int    `json:"database_count"`
}

// Status reports bucket reachability and artifact counts.
func (s *CatalogService) Status(ctx context.Context) (*StorageStatus, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	status := &StorageStatus{}
	if err := s.store.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, nil
	}
	status.Reachable = true

	artifacts, err := s.store.List(ctx, domain.ArtifactNamespace)
	if err != nil {
		status.Error = err.Error()
		return status, nil
	}
	status.ArtifactCount = len(artifacts)

	seen := map[string]struct{}{}
	for _, artifact := range artifacts {
		seen[artifact.DatabaseID] = struct{}{}
	}
	status.DatabaseCount = len(seen)

	return status, nil
}

// ready guards every operation against missing collaborator bindings.
func (s *CatalogService) ready() error {
	if s.store == nil {
		return NewConfigurationError("backup storage is not configured")
	}
	if s.dispatcher == nil || s.platform == nil {
		return NewConfigurationError("backup orchestration is not configured")
	}
	return nil
}
