package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tablohq/backupd/internal/api/dto"
	"github.com/tablohq/backupd/internal/core/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Batch handles POST /search/batch. When the optional timeout elapses the
// batch stops between calls and whatever was computed so far comes back with
// partial=true.
func (h *SearchHandler) Batch(c *gin.Context) {
	var req dto.BatchSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	results, err := h.search.BatchSearch(ctx, req.DatabaseIDs, req.Query)
	if err != nil {
		respondError(c, err)
		return
	}

	partial := len(results) < len(req.DatabaseIDs) && errors.Is(ctx.Err(), context.DeadlineExceeded)
	c.JSON(http.StatusOK, dto.BatchSearchResponse{
		Results: results,
		Partial: partial,
	})
}
