package domain

import "time"

// Audit event types. One "started" event is written at job creation and one
// terminal event at completion; the log is append-only.
const (
	EventJobStarted   = "started"
	EventJobCompleted = "completed"
	EventJobFailed    = "failed"
	EventJobCancelled = "cancelled"
)

type JobAuditEvent struct {
	ID        int64                  `db:"id"`
	JobID     string                 `db:"job_id"`
	EventType string                 `db:"event_type"`
	UserEmail *string                `db:"user_email"`
	Timestamp time.Time              `db:"timestamp"`
	Details   map[string]interface{} `db:"-"`
}

func NewJobAuditEvent(jobID, eventType string, userEmail *string, details map[string]interface{}) *JobAuditEvent {
	if details == nil {
		details = map[string]interface{}{}
	}
	return &JobAuditEvent{
		JobID:     jobID,
		EventType: eventType,
		UserEmail: userEmail,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
}
