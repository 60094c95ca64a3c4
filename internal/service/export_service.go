package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/rs/zerolog"
)

// Export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatCSV    = "csv"
)

// flushEvery is how many entries are written between flushes
const flushEvery = 100

// ledgerCSVHeader is the header row of CSV exports
var ledgerCSVHeader = []string{"seq", "entry_id", "user_id", "delta", "reason", "reference_id", "content_id", "note", "created_at"}

type flusher interface {
	Flush()
}

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamLedger writes every ledger entry in commit order
func (s *exportService) StreamLedger(ctx context.Context, w io.Writer, format string) error {
	s.log.Info().Str("format", format).Msg("Starting ledger export")

	var (
		count int
		err   error
	)
	switch format {
	case FormatNDJSON:
		count, err = s.streamNDJSON(ctx, w)
	case FormatJSON:
		count, err = s.streamJSON(ctx, w)
	case FormatCSV:
		count, err = s.streamCSV(ctx, w)
	default:
		return apperror.InvalidInput("format", "format must be one of: ndjson, json, csv")
	}

	if err != nil {
		s.log.Error().Err(err).Int("count", count).Msg("Ledger export failed")
		return err
	}
	s.log.Info().Int("count", count).Msg("Ledger export completed")
	return nil
}

func (s *exportService) streamNDJSON(ctx context.Context, w io.Writer) (int, error) {
	f, _ := w.(flusher)
	enc := json.NewEncoder(w)
	count := 0

	err := s.repos.Ledger.StreamAll(ctx, func(entry *models.LedgerEntry) error {
		if err := enc.Encode(entry); err != nil {
			return err
		}
		count++

		if count%flushEvery == 0 && f != nil {
			f.Flush()
		}
		return ctx.Err()
	})
	return count, err
}

func (s *exportService) streamJSON(ctx context.Context, w io.Writer) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}
	count := 0

	err := s.repos.Ledger.StreamAll(ctx, func(entry *models.LedgerEntry) error {
		if count > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		count++
		return ctx.Err()
	})
	if err != nil {
		return count, err
	}

	_, err = io.WriteString(w, "]")
	return count, err
}

func (s *exportService) streamCSV(ctx context.Context, w io.Writer) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(ledgerCSVHeader); err != nil {
		return 0, err
	}
	count := 0

	err := s.repos.Ledger.StreamAll(ctx, func(e *models.LedgerEntry) error {
		err := writer.Write([]string{
			strconv.FormatInt(e.Seq, 10),
			e.ID,
			e.UserID,
			strconv.FormatInt(e.Delta, 10),
			string(e.Reason),
			e.ReferenceID,
			e.ContentID,
			e.Note,
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}
		count++

		if count%flushEvery == 0 {
			writer.Flush()
		}
		return ctx.Err()
	})
	writer.Flush()
	if err != nil {
		return count, err
	}
	return count, writer.Error()
}
