package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/points-ledger-engine/internal/service"
	"github.com/rs/zerolog"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

var exportContentTypes = map[string]string{
	service.FormatNDJSON: "application/x-ndjson",
	service.FormatJSON:   "application/json",
	service.FormatCSV:    "text/csv",
}

// StreamLedger handles GET /v1/admin/ledger/export?format=...
// Streams the export directly to the response
func (h *ExportHandler) StreamLedger(c *gin.Context) {
	format := c.Query("format")
	if format == "" {
		format = service.FormatNDJSON // Default to NDJSON for streaming
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of: ndjson, json, csv"})
		return
	}

	filename := "ledger_" + time.Now().UTC().Format("20060102T150405") + "." + format
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	if err := h.services.Export.StreamLedger(c.Request.Context(), c.Writer, format); err != nil {
		h.log.Error().Err(err).Str("format", format).Msg("Export failed")
		// Can't return error JSON after streaming has started
		return
	}
}
