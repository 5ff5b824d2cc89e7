package dto

import "time"

// CreateWebhookRequest registers an outbound notification target.
type CreateWebhookRequest struct {
	URL     string   `json:"url" binding:"required,url"`
	Secret  *string  `json:"secret"`
	Events  []string `json:"events" binding:"required,min=1"`
	Enabled *bool    `json:"enabled"`
}

// UpdateWebhookRequest updates a registration.
type UpdateWebhookRequest struct {
	URL     string   `json:"url" binding:"required,url"`
	Secret  *string  `json:"secret"`
	Events  []string `json:"events" binding:"required,min=1"`
	Enabled *bool    `json:"enabled"`
}

// WebhookResponse represents a registration. The secret is never echoed
// back; HasSecret only reports whether one is configured.
type WebhookResponse struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	HasSecret bool      `json:"has_secret"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookListResponse represents all registrations.
type WebhookListResponse struct {
	Items []WebhookResponse `json:"items"`
}
