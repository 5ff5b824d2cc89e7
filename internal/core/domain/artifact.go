package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArtifactNamespace is the root prefix of every backup artifact key.
const ArtifactNamespace = "backups/"

// Artifact key timestamp layout, e.g. backups/db-1/20260825-143000.sql.
const keyTimestampLayout = "20060102-150405"

// ArtifactMetadata describes a stored backup artifact.
type ArtifactMetadata struct {
	Key          string    `json:"path"`
	DatabaseID   string    `json:"database_id"`
	DatabaseName string    `json:"database_name"`
	Source       string    `json:"source"` // e.g. "manual", "table"
	Timestamp    time.Time `json:"timestamp"`
	Size         int64     `json:"size"`
	Bookmark     *string   `json:"bookmark,omitempty"`
	UserEmail    *string   `json:"user_email,omitempty"`
}

// ArtifactKeyPrefix returns the storage prefix owned by a database.
func ArtifactKeyPrefix(databaseID string) string {
	return ArtifactNamespace + databaseID + "/"
}

// BackupKey builds the deterministic key for a whole-database dump.
func BackupKey(databaseID string, ts time.Time) string {
	return fmt.Sprintf("%s%s.sql", ArtifactKeyPrefix(databaseID), ts.UTC().Format(keyTimestampLayout))
}

// TableBackupKey builds the key for a table-scoped export.
func TableBackupKey(databaseID, tableName string, format TableExportFormat, ts time.Time) string {
	return fmt.Sprintf("%stables/%s/%s.%s",
		ArtifactKeyPrefix(databaseID), tableName, ts.UTC().Format(keyTimestampLayout), format)
}

// KeyOwnedBy reports whether key lies inside the database's own artifact
// namespace. Every delete and list path must check this before touching
// storage (tenant-isolation guard).
func KeyOwnedBy(databaseID, key string) bool {
	if databaseID == "" {
		return false
	}
	return strings.HasPrefix(key, ArtifactKeyPrefix(databaseID))
}

// DatabaseIDFromKey extracts the owning database id from an artifact key.
func DatabaseIDFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, ArtifactNamespace)
	if !ok {
		return "", false
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
