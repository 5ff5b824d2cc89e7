package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/service"
	"github.com/tablohq/backupd/internal/infrastructure/sqlite"
)

// testEnv holds all test dependencies
type testEnv struct {
	db         *sqlite.DB
	router     *gin.Engine
	store      *stubStore
	platform   *stubPlatform
	jobs       *service.JobService
	dispatcher *service.Dispatcher
}

// setupTestEnv creates a test environment with an in-memory SQLite ledger and
// stubbed platform/storage collaborators.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	jobRepo := sqlite.NewJobRepository(db)
	eventRepo := sqlite.NewJobEventRepository(db)
	webhookRepo := sqlite.NewWebhookRepository(db)

	store := &stubStore{objects: map[string][]byte{}}
	pc := &stubPlatform{}

	jobs := service.NewJobService(jobRepo, eventRepo)
	webhooks := service.NewWebhookDispatcher(webhookRepo)
	dispatcher := service.NewDispatcher(jobs, webhooks)
	backup := service.NewBackupService(jobs, pc, store, webhooks, time.Millisecond, 3)
	restore := service.NewRestoreService(jobs, pc, store, webhooks, time.Millisecond, 3, false)
	catalog := service.NewCatalogService(jobs, dispatcher, backup, restore, store, pc)
	search := service.NewSearchService(pc, time.Millisecond)

	jobHandler := NewJobHandler(jobs)
	backupHandler := NewBackupHandler(catalog)
	restoreHandler := NewRestoreHandler(catalog)
	webhookHandler := NewWebhookHandler(webhookRepo)
	searchHandler := NewSearchHandler(search)

	// Setup gin router in test mode; routes registered without auth middleware
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.POST("/jobs/backup/:databaseId", backupHandler.CreateBackup)
	router.POST("/jobs/backup/:databaseId/table", backupHandler.CreateTableBackup)
	router.POST("/jobs/restore/:databaseId", restoreHandler.CreateRestore)
	router.GET("/jobs", jobHandler.List)
	router.GET("/jobs/:jobId", jobHandler.Get)
	router.GET("/jobs/:jobId/events", jobHandler.Events)
	router.GET("/backups/orphaned", backupHandler.Orphaned)
	router.GET("/backups/status", backupHandler.Status)
	router.GET("/backups/:databaseId", backupHandler.ListArtifacts)
	router.GET("/backups/:databaseId/download", backupHandler.Download)
	router.DELETE("/backups/:databaseId", backupHandler.DeleteArtifact)
	router.POST("/backups/:databaseId/bulk-delete", backupHandler.BulkDelete)
	router.DELETE("/backups/:databaseId/all", backupHandler.DeleteAll)
	router.POST("/webhooks", webhookHandler.Create)
	router.GET("/webhooks", webhookHandler.List)
	router.GET("/webhooks/:id", webhookHandler.Get)
	router.PUT("/webhooks/:id", webhookHandler.Update)
	router.DELETE("/webhooks/:id", webhookHandler.Delete)
	router.POST("/search/batch", searchHandler.Batch)

	return &testEnv{
		db:         db,
		router:     router,
		store:      store,
		platform:   pc,
		jobs:       jobs,
		dispatcher: dispatcher,
	}
}

// request performs an HTTP request against the test router.
func (env *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// stubStore is a minimal in-memory ObjectStore for handler tests.
type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (s *stubStore) Put(ctx context.Context, key string, data []byte, meta domain.ArtifactMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *stubStore) Get(ctx context.Context, key string) ([]byte, *domain.ArtifactMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, nil, nil
	}
	return data, s.metaFor(key, data), nil
}

func (s *stubStore) Head(ctx context.Context, key string) (*domain.ArtifactMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	return s.metaFor(key, data), nil
}

func (s *stubStore) List(ctx context.Context, prefix string) ([]domain.ArtifactMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArtifactMetadata
	for key, data := range s.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, *s.metaFor(key, data))
		}
	}
	return out, nil
}

func (s *stubStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }

func (s *stubStore) metaFor(key string, data []byte) *domain.ArtifactMetadata {
	databaseID, _ := domain.DatabaseIDFromKey(key)
	return &domain.ArtifactMetadata{
		Key:        key,
		DatabaseID: databaseID,
		Timestamp:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Size:       int64(len(data)),
	}
}

// stubPlatform answers the protocol with immediate happy-path responses.
type stubPlatform struct {
	databases []platform.Database
}

func (s *stubPlatform) StartExport(ctx context.Context, databaseID string, table *platform.TableExport) (*platform.ExportStatus, error) {
	return &platform.ExportStatus{SignedURL: "https://dumps.test/d1"}, nil
}

func (s *stubPlatform) PollExport(ctx context.Context, databaseID, bookmark string) (*platform.ExportStatus, error) {
	return &platform.ExportStatus{SignedURL: "https://dumps.test/d1"}, nil
}

func (s *stubPlatform) Download(ctx context.Context, url string) ([]byte, error) {
	return []byte("-- dump --"), nil
}

func (s *stubPlatform) InitImport(ctx context.Context, databaseID, digest string, size int64) (*platform.ImportSlot, error) {
	return &platform.ImportSlot{UploadURL: "https://storage.test/slot"}, nil
}

func (s *stubPlatform) Upload(ctx context.Context, url string, data []byte) (string, error) {
	return "", nil
}

func (s *stubPlatform) StartIngest(ctx context.Context, databaseID string) error { return nil }

func (s *stubPlatform) PollIngest(ctx context.Context, databaseID string) (*platform.IngestStatus, error) {
	return &platform.IngestStatus{Done: true}, nil
}

func (s *stubPlatform) ListDatabases(ctx context.Context) ([]platform.Database, error) {
	return s.databases, nil
}

func (s *stubPlatform) Search(ctx context.Context, databaseID, query string) (*platform.SearchResult, error) {
	return &platform.SearchResult{DatabaseID: databaseID, Total: 1}, nil
}
