package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/points-ledger-engine/internal/apperror"
	"github.com/rs/zerolog"
)

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrAlreadyReported):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrInconsistentState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrLedgerCommitFailed), errors.Is(err, apperror.ErrPartiallyApplied):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error body. Internal errors are logged
// and hidden from the client.
func writeError(c *gin.Context, log zerolog.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}
	if code == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.JSON(code, body)
}

// queryLimit parses the optional limit query parameter; 0 means default
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.InvalidInput("limit", "limit must be an integer")
	}
	return limit, nil
}
