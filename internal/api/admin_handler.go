package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
)

// AdminHandler handles operator endpoints under /v1/admin
type AdminHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "admin").Logger(),
	}
}

// Restore handles POST /v1/admin/contents/:content_id/restore
func (h *AdminHandler) Restore(c *gin.Context) {
	if err := h.services.Moderation.RestoreContent(c.Request.Context(), c.Param("content_id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PermanentDelete handles DELETE /v1/admin/contents/:content_id
func (h *AdminHandler) PermanentDelete(c *gin.Context) {
	if err := h.services.Moderation.PermanentDeleteContent(c.Request.Context(), c.Param("content_id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Queue handles GET /v1/admin/moderation/queue?limit=
func (h *AdminHandler) Queue(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	items, err := h.services.Moderation.Queue(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contents": items})
}

// Adjust handles POST /v1/admin/users/:user_id/adjustments
func (h *AdminHandler) Adjust(c *gin.Context) {
	var req models.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID := c.Param("user_id")
	balance, err := h.services.Ledger.Adjust(c.Request.Context(), userID, req.Delta, req.Note)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("admin_id", c.GetString(userIDKey)).
		Str("user_id", userID).
		Int64("delta", req.Delta).
		Msg("Adjustment applied")
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "points_balance": balance})
}

// UpsertAccount handles PUT /v1/admin/accounts/:user_id
func (h *AdminHandler) UpsertAccount(c *gin.Context) {
	var req struct {
		DisplayName string             `json:"display_name"`
		AccountType models.AccountType `json:"account_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	account, err := h.services.Account.Upsert(c.Request.Context(), &models.Account{
		ID:          c.Param("user_id"),
		DisplayName: req.DisplayName,
		AccountType: req.AccountType,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ImportAccounts handles POST /v1/admin/accounts/import (multipart "file")
func (h *AdminHandler) ImportAccounts(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	defer file.Close()

	// Validate file size
	if header.Size > h.cfg.Server.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", h.cfg.Server.MaxUploadSize/(1024*1024)),
		})
		return
	}
	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "accounts import requires CSV file"})
		return
	}

	result, err := h.services.Account.ImportCSV(c.Request.Context(), file)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("filename", header.Filename).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("Accounts imported")
	c.JSON(http.StatusOK, result)
}

// Reconcile handles POST /v1/admin/reconcile and runs one sweep now
func (h *AdminHandler) Reconcile(c *gin.Context) {
	result, err := h.services.Reconcile.Sweep(c.Request.Context())
	if err != nil {
		if result == nil {
			writeError(c, h.log, err)
			return
		}
		h.log.Warn().Err(err).Msg("Sweep finished with errors")
		c.JSON(http.StatusOK, gin.H{"result": result, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Audit handles GET /v1/admin/audit
func (h *AdminHandler) Audit(c *gin.Context) {
	report, err := h.services.Ledger.Audit(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
