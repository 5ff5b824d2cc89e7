package platform

import "fmt"

// APIError is a non-success response from the platform API. The message is
// surfaced verbatim to job failure records.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform API returned status %d", e.StatusCode)
	}
	return e.Message
}

// HTTPStatus exposes the upstream status for rate-limit detection.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// TableExport narrows an export to one table in a given dump format.
type TableExport struct {
	TableName string `json:"table_name"`
	Format    string `json:"format"` // sql, csv or json
}

// ExportStatus is the canonical shape of an export start/poll response. The
// wire protocol returns the signed URL and bookmark either at the top level
// or nested one level under "export"; the client normalizes both shapes here
// so callers never see the inconsistency.
type ExportStatus struct {
	SignedURL string
	Bookmark  string
}

// Ready reports whether the export has produced a downloadable dump.
func (s *ExportStatus) Ready() bool {
	return s.SignedURL != ""
}

// ImportSlot is the upload slot returned by import init.
type ImportSlot struct {
	UploadURL string `json:"upload_url"`
}

// IngestStatus is the canonical ingest poll state. Done covers both the
// explicit success flag and the benign "not currently importing anything"
// terminal signal; Err carries an explicit error reported by the platform.
type IngestStatus struct {
	Done bool
	Err  string
}

// Database is one entry of the platform's live database listing.
type Database struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResult holds the matches of a single-database search call.
type SearchResult struct {
	DatabaseID string                   `json:"database_id"`
	Rows       []map[string]interface{} `json:"rows"`
	Total      int                      `json:"total"`
}
