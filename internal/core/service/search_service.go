package service

import (
	"context"
	"time"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/pkg/ratelimit"
)

// SearchService fans a query out over several databases through the
// rate-limited executor. Calls run strictly in order with the configured
// inter-call delay so a large batch never trips the platform's throttling.
type SearchService struct {
	platform     PlatformClient
	callInterval time.Duration
}

func NewSearchService(pc PlatformClient, callInterval time.Duration) *SearchService {
	return &SearchService{
		platform:     pc,
		callInterval: callInterval,
	}
}

// DatabaseSearchResult is the per-database outcome of a batch search.
type DatabaseSearchResult struct {
	DatabaseID string                   `json:"database_id"`
	Rows       []map[string]interface{} `json:"rows,omitempty"`
	Total      int                      `json:"total"`
	Error      string                   `json:"error,omitempty"`
}

// BatchSearch queries every database in order. Cancelling ctx stops the
// batch before the next call and returns the results computed so far.
func (s *SearchService) BatchSearch(ctx context.Context, databaseIDs []string, query string) ([]DatabaseSearchResult, error) {
	if len(databaseIDs) == 0 {
		return nil, NewValidationError("no database ids given")
	}
	if query == "" {
		return nil, NewValidationError("query is required")
	}

	opts := ratelimit.Options{Interval: s.callInterval}
	outcomes := ratelimit.Run(ctx, opts, databaseIDs, func(ctx context.Context, databaseID string) (*platform.SearchResult, error) {
		return s.platform.Search(ctx, databaseID, query)
	})

	results := make([]DatabaseSearchResult, 0, len(outcomes))
	for _, outcome := range outcomes {
		result := DatabaseSearchResult{DatabaseID: databaseIDs[outcome.Index]}
		if outcome.Err != nil {
			result.Error = outcome.Err.Error()
		} else if outcome.Value != nil {
			result.Rows = outcome.Value.Rows
			result.Total = outcome.Value.Total
		}
		results = append(results, result)
	}

	return results, nil
}
