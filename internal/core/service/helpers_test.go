package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/infrastructure/sqlite"
)

// testEnv wires the services over an in-memory ledger and fake collaborators.
type testEnv struct {
	db       *sqlite.DB
	jobs     *JobService
	webhooks *WebhookDispatcher
	platform *fakePlatform
	store    *fakeStore
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	jobs := NewJobService(sqlite.NewJobRepository(db), sqlite.NewJobEventRepository(db))
	webhooks := NewWebhookDispatcher(sqlite.NewWebhookRepository(db))

	return &testEnv{
		db:       db,
		jobs:     jobs,
		webhooks: webhooks,
		platform: &fakePlatform{},
		store:    &fakeStore{objects: map[string]storedObject{}},
	}
}

func (env *testEnv) backupService() *BackupService {
	return NewBackupService(env.jobs, env.platform, env.store, env.webhooks, time.Millisecond, 5)
}

func (env *testEnv) restoreService(strictDigest bool) *RestoreService {
	return NewRestoreService(env.jobs, env.platform, env.store, env.webhooks, time.Millisecond, 5, strictDigest)
}

func (env *testEnv) newJob(t *testing.T, databaseID string, op domain.OperationType, metadata domain.JobMetadata) *domain.Job {
	t.Helper()
	job := domain.NewJob(databaseID, op, nil, metadata)
	if err := env.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func (env *testEnv) loadJob(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := env.jobs.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load job: %v", err)
	}
	return job
}

// fakePlatform scripts the platform protocol for pipeline tests.
type fakePlatform struct {
	mu sync.Mutex

	startExportErr  error
	exportStatus    *platform.ExportStatus // returned by StartExport
	pollStatuses    []*platform.ExportStatus
	pollErr         error
	downloadData    []byte
	downloadErr     error
	importSlot      *platform.ImportSlot
	initImportErr   error
	uploadDigest    string
	uploadErr       error
	startIngestErr  error
	ingestStatuses  []*platform.IngestStatus
	ingestPollErr   error
	databases       []platform.Database
	searchResults   map[string]*platform.SearchResult
	searchErrs      map[string]error
	searchDelay     time.Duration
	searchedInOrder []string

	startExportCalls int
	pollExportCalls  int
	pollBookmarks    []string
	uploadedData     []byte
	ingestPollCalls  int
}

func (f *fakePlatform) StartExport(ctx context.Context, databaseID string, table *platform.TableExport) (*platform.ExportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startExportCalls++
	if f.startExportErr != nil {
		return nil, f.startExportErr
	}
	if f.exportStatus != nil {
		return f.exportStatus, nil
	}
	return &platform.ExportStatus{Bookmark: "bm-0"}, nil
}

func (f *fakePlatform) PollExport(ctx context.Context, databaseID, bookmark string) (*platform.ExportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollBookmarks = append(f.pollBookmarks, bookmark)
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollExportCalls < len(f.pollStatuses) {
		status := f.pollStatuses[f.pollExportCalls]
		f.pollExportCalls++
		return status, nil
	}
	f.pollExportCalls++
	return &platform.ExportStatus{Bookmark: bookmark}, nil
}

func (f *fakePlatform) Download(ctx context.Context, url string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if f.downloadData != nil {
		return f.downloadData, nil
	}
	return []byte("-- dump --"), nil
}

func (f *fakePlatform) InitImport(ctx context.Context, databaseID, digest string, size int64) (*platform.ImportSlot, error) {
	if f.initImportErr != nil {
		return nil, f.initImportErr
	}
	if f.importSlot != nil {
		return f.importSlot, nil
	}
	return &platform.ImportSlot{UploadURL: "https://storage.test/slot"}, nil
}

func (f *fakePlatform) Upload(ctx context.Context, url string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploadedData = data
	return f.uploadDigest, nil
}

func (f *fakePlatform) StartIngest(ctx context.Context, databaseID string) error {
	return f.startIngestErr
}

func (f *fakePlatform) PollIngest(ctx context.Context, databaseID string) (*platform.IngestStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ingestPollErr != nil {
		return nil, f.ingestPollErr
	}
	if f.ingestPollCalls < len(f.ingestStatuses) {
		status := f.ingestStatuses[f.ingestPollCalls]
		f.ingestPollCalls++
		return status, nil
	}
	f.ingestPollCalls++
	return &platform.IngestStatus{}, nil
}

func (f *fakePlatform) ListDatabases(ctx context.Context) ([]platform.Database, error) {
	return f.databases, nil
}

func (f *fakePlatform) Search(ctx context.Context, databaseID, query string) (*platform.SearchResult, error) {
	f.mu.Lock()
	f.searchedInOrder = append(f.searchedInOrder, databaseID)
	delay := f.searchDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err, ok := f.searchErrs[databaseID]; ok {
		return nil, err
	}
	if result, ok := f.searchResults[databaseID]; ok {
		return result, nil
	}
	return &platform.SearchResult{DatabaseID: databaseID}, nil
}

type storedObject struct {
	data []byte
	meta domain.ArtifactMetadata
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]storedObject

	putErr    error
	getErr    error
	deleteErr error
	pingErr   error

	deleted []string
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, meta domain.ArtifactMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = storedObject{data: data, meta: meta}
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, *domain.ArtifactMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, nil, nil
	}
	meta := obj.meta
	return obj.data, &meta, nil
}

func (f *fakeStore) Head(ctx context.Context, key string) (*domain.ArtifactMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	meta := obj.meta
	return &meta, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]domain.ArtifactMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ArtifactMetadata
	for key, obj := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			meta := obj.meta
			meta.Key = key
			out = append(out, meta)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeStore) seed(key string, data []byte, meta domain.ArtifactMetadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta.Key = key
	f.objects[key] = storedObject{data: data, meta: meta}
}
