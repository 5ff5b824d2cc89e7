package domain

import "time"

type WebhookEvent string

const (
	WebhookBackupComplete  WebhookEvent = "backup_complete"
	WebhookRestoreComplete WebhookEvent = "restore_complete"
	WebhookJobFailed       WebhookEvent = "job_failed"
)

func (e WebhookEvent) Valid() bool {
	switch e {
	case WebhookBackupComplete, WebhookRestoreComplete, WebhookJobFailed:
		return true
	}
	return false
}

// WebhookRegistration is an outbound notification target. When Secret is set
// each delivery body is signed with HMAC-SHA256 over it.
type WebhookRegistration struct {
	ID        int64          `db:"id"`
	URL       string         `db:"url"`
	Secret    *string        `db:"secret"`
	Events    []WebhookEvent `db:"-"`
	Enabled   bool           `db:"enabled"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// SubscribedTo reports whether the registration listens for event.
func (r *WebhookRegistration) SubscribedTo(event WebhookEvent) bool {
	for _, e := range r.Events {
		if e == event {
			return true
		}
	}
	return false
}
