package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
)

// ContentHandler handles content lifecycle and report endpoints
type ContentHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(services *service.Services, log zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		services: services,
		log:      log.With().Str("handler", "content").Logger(),
	}
}

// GetContent handles GET /v1/contents/:content_id
func (h *ContentHandler) GetContent(c *gin.Context) {
	content, err := h.services.Content.Get(c.Request.Context(), c.Param("content_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

// Publish handles POST /v1/contents
func (h *ContentHandler) Publish(c *gin.Context) {
	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	content, err := h.services.Content.Publish(c.Request.Context(), c.GetString(userIDKey), &req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, content)
}

// Delete handles DELETE /v1/contents/:content_id
func (h *ContentHandler) Delete(c *gin.Context) {
	if err := h.services.Content.Delete(c.Request.Context(), c.GetString(userIDKey), c.Param("content_id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Like handles POST /v1/contents/:content_id/likes
func (h *ContentHandler) Like(c *gin.Context) {
	if err := h.services.Content.Like(c.Request.Context(), c.GetString(userIDKey), c.Param("content_id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unlike handles DELETE /v1/contents/:content_id/likes
func (h *ContentHandler) Unlike(c *gin.Context) {
	if err := h.services.Content.Unlike(c.Request.Context(), c.GetString(userIDKey), c.Param("content_id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Comment handles POST /v1/contents/:content_id/comments. The body is optional.
func (h *ContentHandler) Comment(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comment, err := h.services.Content.Comment(c.Request.Context(), c.GetString(userIDKey), c.Param("content_id"), req.CommentID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Uncomment handles DELETE /v1/contents/:content_id/comments/:comment_id
func (h *ContentHandler) Uncomment(c *gin.Context) {
	err := h.services.Content.Uncomment(c.Request.Context(), c.GetString(userIDKey), c.Param("content_id"), c.Param("comment_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Report handles POST /v1/contents/:content_id/reports
func (h *ContentHandler) Report(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, apperror.InvalidInput("reason", "invalid request body"))
		return
	}

	outcome, err := h.services.Moderation.ReportContent(c.Request.Context(), c.Param("content_id"), c.GetString(userIDKey), req.Reason, req.Details)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, outcome)
}
