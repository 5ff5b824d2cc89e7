package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackupKeyLayout(t *testing.T) {
	ts := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "backups/db-1/20260825-143000.sql", BackupKey("db-1", ts))
	assert.Equal(t, "backups/db-1/tables/customers/20260825-143000.csv",
		TableBackupKey("db-1", "customers", FormatCSV, ts))
}

func TestKeyOwnedBy(t *testing.T) {
	tests := []struct {
		name       string
		databaseID string
		key        string
		owned      bool
	}{
		{"own namespace", "db-1", "backups/db-1/a.sql", true},
		{"own table export", "db-1", "backups/db-1/tables/t/a.csv", true},
		{"foreign namespace", "db-1", "backups/db-2/a.sql", false},
		{"prefix id trick", "db-1", "backups/db-10/a.sql", false},
		{"outside namespace", "db-1", "other/db-1/a.sql", false},
		{"bare prefix", "db-1", "backups/db-1/", true},
		{"empty database id", "", "backups//a.sql", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.owned, KeyOwnedBy(tt.databaseID, tt.key))
		})
	}
}

func TestDatabaseIDFromKey(t *testing.T) {
	id, ok := DatabaseIDFromKey("backups/db-1/20260825-143000.sql")
	assert.True(t, ok)
	assert.Equal(t, "db-1", id)

	_, ok = DatabaseIDFromKey("other/db-1/a.sql")
	assert.False(t, ok)

	_, ok = DatabaseIDFromKey("backups/")
	assert.False(t, ok)
}
