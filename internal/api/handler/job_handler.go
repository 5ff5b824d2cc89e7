package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tablohq/backupd/internal/api/dto"
	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/repository"
	"github.com/tablohq/backupd/internal/core/service"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// List handles GET /jobs with optional database_id, status, operation_type
// filters and page/per_page pagination.
func (h *JobHandler) List(c *gin.Context) {
	filter := repository.JobFilter{}

	if databaseID := c.Query("database_id"); databaseID != "" {
		filter.DatabaseID = &databaseID
	}
	if statusParam := c.Query("status"); statusParam != "" {
		status := domain.JobStatus(statusParam)
		if !status.Valid() {
			respondBadRequest(c, "Invalid status filter: "+statusParam)
			return
		}
		filter.Status = &status
	}
	if opParam := c.Query("operation_type"); opParam != "" {
		op := domain.OperationType(opParam)
		switch op {
		case domain.OperationBackup, domain.OperationTableBackup, domain.OperationRestore:
		default:
			respondBadRequest(c, "Invalid operation_type filter: "+opParam)
			return
		}
		filter.OperationType = &op
	}

	page, perPage := pagination(c)
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	jobs, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.jobs.Count(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.JobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobResponse(job))
	}

	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}

	c.JSON(http.StatusOK, dto.JobListResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
		},
	})
}

// Get handles GET /jobs/:jobId.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

// Events handles GET /jobs/:jobId/events.
func (h *JobHandler) Events(c *gin.Context) {
	events, err := h.jobs.ListEvents(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.JobEventResponse, 0, len(events))
	for _, event := range events {
		items = append(items, dto.JobEventResponse{
			ID:        event.ID,
			JobID:     event.JobID,
			EventType: event.EventType,
			UserEmail: event.UserEmail,
			Timestamp: event.Timestamp,
			Details:   event.Details,
		})
	}
	c.JSON(http.StatusOK, dto.JobEventListResponse{Items: items})
}

func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func toJobResponse(job *domain.Job) dto.JobResponse {
	resp := dto.JobResponse{
		JobID:          job.ID,
		DatabaseID:     job.DatabaseID,
		OperationType:  string(job.OperationType),
		Status:         string(job.Status),
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		ErrorCount:     job.ErrorCount,
		Percentage:     job.Percentage,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		UserEmail:      job.UserEmail,
	}
	switch {
	case job.Metadata.Backup != nil:
		resp.Metadata = job.Metadata.Backup
	case job.Metadata.TableBackup != nil:
		resp.Metadata = job.Metadata.TableBackup
	case job.Metadata.Restore != nil:
		resp.Metadata = job.Metadata.Restore
	}
	return resp
}

func asyncResponse(job *domain.Job) dto.AsyncJobResponse {
	return dto.AsyncJobResponse{
		JobID:  job.ID,
		Status: string(domain.JobStatusQueued),
		Link:   "/jobs/" + job.ID,
	}
}
