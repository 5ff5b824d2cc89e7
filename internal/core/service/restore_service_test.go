package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/internal/core/domain"
)

func restoreMetadata(path string) domain.JobMetadata {
	return domain.JobMetadata{Restore: &domain.RestoreMetadata{Path: path}}
}

func seedArtifact(env *testEnv, databaseID string, data []byte) string {
	key := domain.ArtifactKeyPrefix(databaseID) + "20260101-120000.sql"
	env.store.seed(key, data, domain.ArtifactMetadata{
		DatabaseID:   databaseID,
		DatabaseName: "orders",
	})
	return key
}

func TestRestoreHappyPath(t *testing.T) {
	env := setupTestEnv(t)
	dump := []byte("-- restorable dump --")
	key := seedArtifact(env, "db-1", dump)

	sum := md5.Sum(dump)
	env.platform.uploadDigest = hex.EncodeToString(sum[:])
	env.platform.ingestStatuses = []*platform.IngestStatus{
		{},
		{Done: true},
	}

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata(key))
	require.NoError(t, env.restoreService(false).Run(context.Background(), job))

	assert.Equal(t, dump, env.platform.uploadedData)

	stored := env.loadJob(t, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, float64(100), stored.Percentage)
}

func TestRestoreArtifactMissing(t *testing.T) {
	env := setupTestEnv(t)

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata("backups/db-1/nope.sql"))
	err := env.restoreService(false).Run(context.Background(), job)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ErrNotFound, svcErr.Kind)
}

func TestRestoreDigestMismatchProceeds(t *testing.T) {
	env := setupTestEnv(t)
	key := seedArtifact(env, "db-1", []byte("content"))

	// Storage reports a digest that does not match the computed one. The
	// default posture logs the discrepancy and keeps going.
	env.platform.uploadDigest = "deadbeef"
	env.platform.ingestStatuses = []*platform.IngestStatus{{Done: true}}

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata(key))
	require.NoError(t, env.restoreService(false).Run(context.Background(), job))

	stored := env.loadJob(t, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
}

func TestRestoreDigestMismatchStrict(t *testing.T) {
	env := setupTestEnv(t)
	key := seedArtifact(env, "db-1", []byte("content"))
	env.platform.uploadDigest = "deadbeef"

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata(key))
	err := env.restoreService(true).Run(context.Background(), job)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ErrIngestFailed, svcErr.Kind)
	assert.Contains(t, svcErr.Message, "digest mismatch")
	assert.Equal(t, 0, env.platform.ingestPollCalls, "ingestion must not start on a strict digest failure")
}

func TestRestoreIngestError(t *testing.T) {
	env := setupTestEnv(t)
	key := seedArtifact(env, "db-1", []byte("content"))
	env.platform.ingestStatuses = []*platform.IngestStatus{
		{},
		{Err: "syntax error at line 3"},
	}

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata(key))
	err := env.restoreService(false).Run(context.Background(), job)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ErrIngestFailed, svcErr.Kind)
	assert.Contains(t, svcErr.Message, "syntax error at line 3")
}

func TestRestoreIngestTimeout(t *testing.T) {
	env := setupTestEnv(t)
	key := seedArtifact(env, "db-1", []byte("content"))
	// Every ingest poll reports still-in-progress.

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata(key))
	err := env.restoreService(false).Run(context.Background(), job)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ErrIngestTimeout, svcErr.Kind)
	assert.Equal(t, 5, env.platform.ingestPollCalls)
}

func TestRestoreInitImportFails(t *testing.T) {
	env := setupTestEnv(t)
	key := seedArtifact(env, "db-1", []byte("content"))
	env.platform.initImportErr = &platform.APIError{StatusCode: 503, Message: "no import capacity"}

	job := env.newJob(t, "db-1", domain.OperationRestore, restoreMetadata(key))
	err := env.restoreService(false).Run(context.Background(), job)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, ErrUpstream, svcErr.Kind)
	assert.Contains(t, svcErr.Message, "no import capacity")
}
