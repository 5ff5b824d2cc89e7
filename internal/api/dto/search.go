package dto

// BatchSearchRequest fans a query out over several databases.
type BatchSearchRequest struct {
	DatabaseIDs []string `json:"database_ids" binding:"required,min=1"`
	Query       string   `json:"query" binding:"required"`
	// TimeoutMs bounds the whole batch; results computed before the
	// deadline are still returned.
	TimeoutMs int `json:"timeout_ms"`
}

// BatchSearchResponse holds per-database search outcomes in request order.
type BatchSearchResponse struct {
	Results interface{} `json:"results"`
	Partial bool        `json:"partial"`
}
