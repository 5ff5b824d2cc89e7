// Package platform is the client for the database platform's export/import
// API. All protocol irregularities (nested response shapes, benign terminal
// poll states) are normalized at this boundary.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// do sends a JSON request to the platform API and decodes the response into
// out (when non-nil). Non-2xx responses become an *APIError carrying the
// platform's own message.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts the platform's error text from a failure body.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// exportResponse is the raw wire shape of export start/poll. Small datasets
// return the signed URL immediately; larger ones return a resumable
// bookmark. Either field may arrive at the top level or nested under
// "export" depending on the platform code path.
type exportResponse struct {
	URL      string `json:"url"`
	Bookmark string `json:"bookmark"`
	Export   *struct {
		URL      string `json:"url"`
		Bookmark string `json:"bookmark"`
	} `json:"export"`
}

func (r *exportResponse) normalize() *ExportStatus {
	status := &ExportStatus{SignedURL: r.URL, Bookmark: r.Bookmark}
	if r.Export != nil {
		if status.SignedURL == "" {
			status.SignedURL = r.Export.URL
		}
		if status.Bookmark == "" {
			status.Bookmark = r.Export.Bookmark
		}
	}
	return status
}

// StartExport begins a database export. A nil table exports the whole
// database as a SQL dump.
func (c *Client) StartExport(ctx context.Context, databaseID string, table *TableExport) (*ExportStatus, error) {
	var raw exportResponse
	path := fmt.Sprintf("/v1/databases/%s/export", databaseID)
	if err := c.do(ctx, http.MethodPost, path, table, &raw); err != nil {
		return nil, err
	}
	return raw.normalize(), nil
}

// PollExport resumes a pending export with the last bookmark.
func (c *Client) PollExport(ctx context.Context, databaseID, bookmark string) (*ExportStatus, error) {
	var raw exportResponse
	path := fmt.Sprintf("/v1/databases/%s/export/poll", databaseID)
	body := map[string]string{"bookmark": bookmark}
	if err := c.do(ctx, http.MethodPost, path, body, &raw); err != nil {
		return nil, err
	}
	return raw.normalize(), nil
}

// Download fetches the dump behind a signed URL.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("download returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump: %w", err)
	}
	return data, nil
}

// InitImport requests an upload slot for a restore. The digest doubles as an
// integrity and dedup token on the platform side.
func (c *Client) InitImport(ctx context.Context, databaseID, digest string, size int64) (*ImportSlot, error) {
	var slot ImportSlot
	path := fmt.Sprintf("/v1/databases/%s/import/init", databaseID)
	body := map[string]interface{}{"digest": digest, "size": size}
	if err := c.do(ctx, http.MethodPost, path, body, &slot); err != nil {
		return nil, err
	}
	if slot.UploadURL == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "import init returned no upload URL"}
	}
	return &slot, nil
}

// Upload PUTs the dump to the slot's signed URL and returns the digest the
// storage backend reports for the received content (from the ETag header;
// empty when the backend does not report one).
func (c *Client) Upload(ctx context.Context, url string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("upload returned status %d", resp.StatusCode)}
	}

	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// StartIngest asks the platform to ingest the uploaded dump.
func (c *Client) StartIngest(ctx context.Context, databaseID string) error {
	path := fmt.Sprintf("/v1/databases/%s/import/ingest", databaseID)
	return c.do(ctx, http.MethodPost, path, struct{}{}, nil)
}

// ingestResponse is the raw ingest poll shape. The platform reports a benign
// "not currently importing anything" message once ingestion has finished and
// the import slot is gone; that counts as success.
type ingestResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r *ingestResponse) normalize() *IngestStatus {
	if r.Error != "" {
		return &IngestStatus{Err: r.Error}
	}
	if r.Success || strings.Contains(strings.ToLower(r.Message), "not currently importing") {
		return &IngestStatus{Done: true}
	}
	return &IngestStatus{}
}

// PollIngest checks ingestion progress.
func (c *Client) PollIngest(ctx context.Context, databaseID string) (*IngestStatus, error) {
	var raw ingestResponse
	path := fmt.Sprintf("/v1/databases/%s/import/status", databaseID)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw.normalize(), nil
}

// ListDatabases returns the live database listing, used for orphan
// detection against the artifact namespace.
func (c *Client) ListDatabases(ctx context.Context) ([]Database, error) {
	var body struct {
		Databases []Database `json:"databases"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/databases", nil, &body); err != nil {
		return nil, err
	}
	return body.Databases, nil
}

// Search runs a search query against one database.
func (c *Client) Search(ctx context.Context, databaseID, query string) (*SearchResult, error) {
	var result SearchResult
	path := fmt.Sprintf("/v1/databases/%s/search", databaseID)
	body := map[string]string{"query": query}
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	result.DatabaseID = databaseID
	return &result, nil
}
