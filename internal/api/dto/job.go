package dto

import "time"

// AsyncJobResponse is returned by job-creating endpoints. The work continues
// in the background; failures surface later through status polling, the
// audit log, or webhooks.
type AsyncJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"` // always "queued"
	Link   string `json:"link"`   // status endpoint for this job
}

// JobResponse represents a job record.
type JobResponse struct {
	JobID          string      `json:"job_id"`
	DatabaseID     string      `json:"database_id"`
	OperationType  string      `json:"operation_type"`
	Status         string      `json:"status"`
	TotalItems     int         `json:"total_items"`
	ProcessedItems int         `json:"processed_items"`
	ErrorCount     int         `json:"error_count"`
	Percentage     float64     `json:"percentage"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	UserEmail      *string     `json:"user_email,omitempty"`
	Metadata       interface{} `json:"metadata,omitempty"`
}

// JobListResponse represents a list of jobs.
type JobListResponse struct {
	Items      []JobResponse  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// JobEventResponse represents one audit event.
type JobEventResponse struct {
	ID        int64                  `json:"id"`
	JobID     string                 `json:"job_id"`
	EventType string                 `json:"event_type"`
	UserEmail *string                `json:"user_email,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// JobEventListResponse represents a job's audit trail.
type JobEventListResponse struct {
	Items []JobEventResponse `json:"items"`
}
