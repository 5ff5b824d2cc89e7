package service

import (
	"context"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/internal/core/domain"
)

// PlatformClient is the slice of the platform export/import protocol the
// pipelines consume. Implemented by platform.Client; faked in tests.
type PlatformClient interface {
	StartExport(ctx context.Context, databaseID string, table *platform.TableExport) (*platform.ExportStatus, error)
	PollExport(ctx context.Context, databaseID, bookmark string) (*platform.ExportStatus, error)
	Download(ctx context.Context, url string) ([]byte, error)
	InitImport(ctx context.Context, databaseID, digest string, size int64) (*platform.ImportSlot, error)
	Upload(ctx context.Context, url string, data []byte) (string, error)
	StartIngest(ctx context.Context, databaseID string) error
	PollIngest(ctx context.Context, databaseID string) (*platform.IngestStatus, error)
	ListDatabases(ctx context.Context) ([]platform.Database, error)
	Search(ctx context.Context, databaseID, query string) (*platform.SearchResult, error)
}

// ObjectStore is the artifact blob store. Get and Head return nil for a
// missing key. Implemented by objectstore.S3Store.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, meta domain.ArtifactMetadata) error
	Get(ctx context.Context, key string) ([]byte, *domain.ArtifactMetadata, error)
	Head(ctx context.Context, key string) (*domain.ArtifactMetadata, error)
	List(ctx context.Context, prefix string) ([]domain.ArtifactMetadata, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
