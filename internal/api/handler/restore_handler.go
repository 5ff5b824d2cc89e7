package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tablohq/backupd/internal/api/dto"
	"github.com/tablohq/backupd/internal/api/middleware"
	"github.com/tablohq/backupd/internal/core/service"
)

type RestoreHandler struct {
	catalog *service.CatalogService
}

func NewRestoreHandler(catalog *service.CatalogService) *RestoreHandler {
	return &RestoreHandler{catalog: catalog}
}

// CreateRestore handles POST /jobs/restore/:databaseId. The artifact must
// exist and live inside the database's own namespace; both are checked
// synchronously so the client gets an immediate 404 or 400 instead of a
// failed job.
func (h *RestoreHandler) CreateRestore(c *gin.Context) {
	var req dto.CreateRestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.catalog.StartRestore(c.Request.Context(), c.Param("databaseId"), req.Path, middleware.UserEmail(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, asyncResponse(job))
}
