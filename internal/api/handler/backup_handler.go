package handler

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/tablohq/backupd/internal/api/dto"
	"github.com/tablohq/backupd/internal/api/middleware"
	"github.com/tablohq/backupd/internal/core/domain"
	"github.com/tablohq/backupd/internal/core/service"
)

type BackupHandler struct {
	catalog *service.CatalogService
}

func NewBackupHandler(catalog *service.CatalogService) *BackupHandler {
	return &BackupHandler{catalog: catalog}
}

// CreateBackup handles POST /jobs/backup/:databaseId. The response is 202:
// the dump, download and upload all happen in the background.
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	var req dto.CreateBackupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	job, err := h.catalog.StartBackup(c.Request.Context(), c.Param("databaseId"), req.DatabaseName, middleware.UserEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, asyncResponse(job))
}

// CreateTableBackup handles POST /jobs/backup/:databaseId/table.
func (h *BackupHandler) CreateTableBackup(c *gin.Context) {
	var req dto.CreateTableBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.catalog.StartTableBackup(
		c.Request.Context(),
		c.Param("databaseId"),
		req.DatabaseName,
		req.TableName,
		domain.TableExportFormat(req.Format),
		middleware.UserEmail(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, asyncResponse(job))
}

// ListArtifacts handles GET /backups/:databaseId.
func (h *BackupHandler) ListArtifacts(c *gin.Context) {
	artifacts, err := h.catalog.ListArtifacts(c.Request.Context(), c.Param("databaseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ArtifactListResponse{Items: toArtifactResponses(artifacts)})
}

// Download handles GET /backups/:databaseId/download?path=... and streams the
// artifact back as an attachment.
func (h *BackupHandler) Download(c *gin.Context) {
	artifactPath := c.Query("path")
	if artifactPath == "" {
		respondBadRequest(c, "Query parameter 'path' is required")
		return
	}

	data, meta, err := h.catalog.Download(c.Request.Context(), c.Param("databaseId"), artifactPath)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := path.Base(artifactPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if meta != nil && meta.Size > 0 {
		c.Header("Content-Length", fmt.Sprintf("%d", meta.Size))
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// DeleteArtifact handles DELETE /backups/:databaseId?path=...
func (h *BackupHandler) DeleteArtifact(c *gin.Context) {
	artifactPath := c.Query("path")
	if artifactPath == "" {
		respondBadRequest(c, "Query parameter 'path' is required")
		return
	}

	if err := h.catalog.DeleteArtifact(c.Request.Context(), c.Param("databaseId"), artifactPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: 1})
}

// BulkDelete handles POST /backups/:databaseId/bulk-delete.
func (h *BackupHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	deleted, err := h.catalog.BulkDelete(c.Request.Context(), c.Param("databaseId"), req.Paths)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: deleted})
}

// DeleteAll handles DELETE /backups/:databaseId/all.
func (h *BackupHandler) DeleteAll(c *gin.Context) {
	deleted, err := h.catalog.DeleteAll(c.Request.Context(), c.Param("databaseId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: deleted})
}

// Orphaned handles GET /backups/orphaned: artifacts whose owning database no
// longer exists on the platform.
func (h *BackupHandler) Orphaned(c *gin.Context) {
	artifacts, err := h.catalog.FindOrphaned(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ArtifactListResponse{Items: toArtifactResponses(artifacts)})
}

// Status handles GET /backups/status.
func (h *BackupHandler) Status(c *gin.Context) {
	status, err := h.catalog.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func toArtifactResponses(artifacts []domain.ArtifactMetadata) []dto.ArtifactResponse {
	items := make([]dto.ArtifactResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		items = append(items, dto.ArtifactResponse{
			Path:         artifact.Key,
			DatabaseID:   artifact.DatabaseID,
			DatabaseName: artifact.DatabaseName,
			Source:       artifact.Source,
			Timestamp:    artifact.Timestamp,
			Size:         artifact.Size,
			UserEmail:    artifact.UserEmail,
		})
	}
	return items
}
