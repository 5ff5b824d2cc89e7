package dto

import "time"

// CreateBackupRequest starts a whole-database backup.
type CreateBackupRequest struct {
	DatabaseName string `json:"database_name"`
}

// CreateTableBackupRequest starts a table-scoped backup.
type CreateTableBackupRequest struct {
	DatabaseName string `json:"database_name"`
	TableName    string `json:"table_name" binding:"required"`
	Format       string `json:"format" binding:"required,oneof=sql csv json"`
}

// ArtifactResponse represents a stored backup artifact.
type ArtifactResponse struct {
	Path         string    `json:"path"`
	DatabaseID   string    `json:"database_id"`
	DatabaseName string    `json:"database_name,omitempty"`
	Source       string    `json:"source,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Size         int64     `json:"size"`
	UserEmail    *string   `json:"user_email,omitempty"`
}

// ArtifactListResponse represents a list of artifacts.
type ArtifactListResponse struct {
	Items []ArtifactResponse `json:"items"`
}

// BulkDeleteRequest removes a set of artifacts by path.
type BulkDeleteRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

// DeleteResponse reports how many artifacts a delete operation removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}
