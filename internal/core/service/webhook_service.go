package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
)

const (
	SignatureHeader = "X-Backupd-Signature"
	EventHeader     = "X-Backupd-Event"

	deliveryTimeout = 30 * time.Second
)

// WebhookDispatcher fans out event notifications to enabled registrations.
// Deliveries are fire-and-forget: concurrent, no retry, and one target's
// failure never blocks or fails another's.
type WebhookDispatcher struct {
	repo   repository.WebhookRepository
	client *http.Client
	wg     sync.WaitGroup
}

func NewWebhookDispatcher(repo repository.WebhookRepository) *WebhookDispatcher {
	return &WebhookDispatcher{
		repo:   repo,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// webhookEnvelope is the JSON body of every delivery.
type webhookEnvelope struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Fire delivers the event to every enabled registration subscribed to it.
// It never blocks the caller and never returns an error: delivery failures
// are logged only.
func (d *WebhookDispatcher) Fire(event domain.WebhookEvent, data interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	regs, err := d.repo.List(ctx)
	cancel()
	if err != nil {
		log.WithError(err).WithField("event", event).Warn("failed to list webhook registrations")
		return
	}

	body, err := json.Marshal(webhookEnvelope{
		Event:     string(event),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		log.WithError(err).WithField("event", event).Warn("failed to marshal webhook payload")
		return
	}

	for _, reg := range regs {
		if !reg.Enabled || !reg.SubscribedTo(event) {
			continue
		}

		d.wg.Add(1)
		go func(reg *domain.WebhookRegistration) {
			defer d.wg.Done()
			d.deliver(reg, event, body)
		}(reg)
	}
}

// deliver POSTs one signed notification. Non-2xx responses and transport
// errors are logged, never escalated.
func (d *WebhookDispatcher) deliver(reg *domain.WebhookRegistration, event domain.WebhookEvent, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.URL, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).WithField("url", reg.URL).Warn("failed to create webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event))

	if reg.Secret != nil && *reg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, *reg.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"url":   reg.URL,
			"event": event,
		}).Warn("webhook delivery failed")
		return
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithFields(log.Fields{
			"url":    reg.URL,
			"event":  event,
			"status": resp.StatusCode,
		}).Warn("webhook returned non-2xx status")
		return
	}

	log.WithFields(log.Fields{
		"url":   reg.URL,
		"event": event,
	}).Debug("webhook delivered")
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown and in
// tests.
func (d *WebhookDispatcher) Wait() {
	d.wg.Wait()
}

// Sign computes the delivery signature for a body: a hex HMAC-SHA256 over
// the registration secret, prefixed with the algorithm.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a received signature against the body and secret.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
