package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tablohq/backupd/internal/api/dto"
	"github.com/tablohq/backupd/internal/core/service"
)

// errorTitles maps service error kinds onto the short error label clients
// switch on.
var errorTitles = map[service.ErrorKind]string{
	service.ErrValidation:      "Validation Error",
	service.ErrNotFound:        "Not Found",
	service.ErrTenantIsolation: "Tenant Isolation Violation",
	service.ErrUpstream:        "Upstream Error",
	service.ErrExportTimeout:   "Export Timeout",
	service.ErrIngestTimeout:   "Ingest Timeout",
	service.ErrIngestFailed:    "Ingest Failed",
	service.ErrConfiguration:   "Service Unavailable",
	service.ErrStorage:         "Storage Error",
}

// respondError translates a service error into an HTTP response. Unclassified
// errors become opaque 500s; their detail goes to the log, not the client.
func respondError(c *gin.Context, err error) {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		title, ok := errorTitles[svcErr.Kind]
		if !ok {
			title = "Error"
		}
		c.JSON(svcErr.Code, dto.ErrorResponse{
			Error:   title,
			Message: svcErr.Message,
			Code:    svcErr.Code,
		})
		return
	}

	log.WithError(err).WithField("path", c.Request.URL.Path).Error("unhandled error")
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal Server Error",
		Message: "An unexpected error occurred",
		Code:    http.StatusInternalServerError,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Bad Request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
