package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tablohq/backupd/internal/api/dto"
	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
)

type WebhookHandler struct {
	repo repository.WebhookRepository
}

func NewWebhookHandler(repo repository.WebhookRepository) *WebhookHandler {
	return &WebhookHandler{repo: repo}
}

// List handles GET /webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	regs, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.WebhookResponse, 0, len(regs))
	for _, reg := range regs {
		items = append(items, toWebhookResponse(reg))
	}
	c.JSON(http.StatusOK, dto.WebhookListResponse{Items: items})
}

// Get handles GET /webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}
	reg, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if reg == nil {
		respondNotFound(c, "Webhook not found")
		return
	}
	c.JSON(http.StatusOK, toWebhookResponse(reg))
}

// Create handles POST /webhooks.
func (h *WebhookHandler) Create(c *gin.Context) {
	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	events, ok := parseEvents(c, req.Events)
	if !ok {
		return
	}

	now := time.Now().UTC()
	reg := &domain.WebhookRegistration{
		URL:       req.URL,
		Secret:    req.Secret,
		Events:    events,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Enabled != nil {
		reg.Enabled = *req.Enabled
	}

	if err := h.repo.Create(c.Request.Context(), reg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWebhookResponse(reg))
}

// Update handles PUT /webhooks/:id.
func (h *WebhookHandler) Update(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	events, ok := parseEvents(c, req.Events)
	if !ok {
		return
	}

	reg, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if reg == nil {
		respondNotFound(c, "Webhook not found")
		return
	}

	reg.URL = req.URL
	reg.Events = events
	if req.Secret != nil {
		reg.Secret = req.Secret
	}
	if req.Enabled != nil {
		reg.Enabled = *req.Enabled
	}
	reg.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(c.Request.Context(), reg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toWebhookResponse(reg))
}

// Delete handles DELETE /webhooks/:id.
func (h *WebhookHandler) Delete(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}

	reg, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if reg == nil {
		respondNotFound(c, "Webhook not found")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func webhookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid webhook id")
		return 0, false
	}
	return id, true
}

func parseEvents(c *gin.Context, names []string) ([]domain.WebhookEvent, bool) {
	events := make([]domain.WebhookEvent, 0, len(names))
	for _, name := range names {
		event := domain.WebhookEvent(name)
		if !event.Valid() {
			respondBadRequest(c, "Unknown event type: "+name)
			return nil, false
		}
		events = append(events, event)
	}
	return events, true
}

func respondNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, dto.ErrorResponse{
		Error:   "Not Found",
		Message: message,
		Code:    http.StatusNotFound,
	})
}

func toWebhookResponse(reg *domain.WebhookRegistration) dto.WebhookResponse {
	events := make([]string, 0, len(reg.Events))
	for _, event := range reg.Events {
		events = append(events, string(event))
	}
	return dto.WebhookResponse{
		ID:        reg.ID,
		URL:       reg.URL,
		HasSecret: reg.Secret != nil && *reg.Secret != "",
		Events:    events,
		Enabled:   reg.Enabled,
		CreatedAt: reg.CreatedAt,
		UpdatedAt: reg.UpdatedAt,
	}
}
