package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/validation"
	"github.com/rs/zerolog"
)

// maxImportErrors bounds the validation errors kept in an import result
const maxImportErrors = 100

// accountService is the concrete implementation of AccountService
type accountService struct {
	repos   *repository.Repositories
	ranking RankingService
	log     zerolog.Logger
}

// newAccountService creates a new AccountService
func newAccountService(repos *repository.Repositories, ranking RankingService, log zerolog.Logger) *accountService {
	return &accountService{
		repos:   repos,
		ranking: ranking,
		log:     log.With().Str("service", "account").Logger(),
	}
}

// Upsert creates or updates one account
func (s *accountService) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	row := &models.AccountCSV{ID: account.ID, DisplayName: account.DisplayName, AccountType: string(account.AccountType)}
	if errs := validation.NewValidator().ValidateAccount(row, 0); len(errs) > 0 {
		return nil, apperror.InvalidInput(errs[0].Field, errs[0].Message)
	}
	account.AccountType = models.AccountType(strings.ToLower(string(account.AccountType)))

	if err := s.repos.Account.Upsert(ctx, account); err != nil {
		return nil, err
	}
	s.ranking.InvalidateScoreboard()
	return account, nil
}

// Get returns one account
func (s *accountService) Get(ctx context.Context, id string) (*models.Account, error) {
	if err := validation.CheckID("user_id", id); err != nil {
		return nil, err
	}
	account, err := s.repos.Account.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperror.NotFound("account", id)
	}
	return account, nil
}

// ImportCSV upserts accounts from a CSV with an id, display_name and
// account_type header. Invalid rows are reported and skipped; valid rows
// are applied in one transaction.
func (s *accountService) ImportCSV(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperror.InvalidInput("file", "file is empty")
	}
	if err != nil {
		return nil, apperror.InvalidInput("file", fmt.Sprintf("invalid CSV header: %v", err))
	}
	headerMap := make(map[string]int)
	for i, h := range header {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := headerMap["id"]; !ok {
		return nil, apperror.InvalidInput("file", "CSV header must contain id")
	}

	result := &models.ImportResult{}
	validator := validation.NewValidator()
	var accounts []*models.Account
	lineNum := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		result.Total++

		if err != nil {
			result.Failed++
			s.addError(result, models.ValidationError{Line: lineNum, Field: "row", Message: err.Error()})
			continue
		}

		row := &models.AccountCSV{
			ID:          getField(record, headerMap, "id"),
			DisplayName: getField(record, headerMap, "display_name"),
			AccountType: getField(record, headerMap, "account_type"),
		}

		if errs := validator.ValidateAccount(row, lineNum); len(errs) > 0 {
			result.Failed++
			for _, e := range errs {
				s.addError(result, models.ValidationError{Line: lineNum, Field: e.Field, Message: e.Message, Value: e.Value})
			}
			continue
		}

		validator.AddAccountID(row.ID)
		accounts = append(accounts, &models.Account{
			ID:          row.ID,
			DisplayName: row.DisplayName,
			AccountType: models.AccountType(strings.ToLower(row.AccountType)),
		})
	}

	if len(accounts) > 0 {
		err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, r *repository.Repositories) error {
			for _, a := range accounts {
				if err := r.Account.Upsert(ctx, a); err != nil {
					return fmt.Errorf("upsert account %s: %w", a.ID, err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.ranking.InvalidateScoreboard()
	}
	result.Successful = len(accounts)

	s.log.Info().
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("Account import completed")
	return result, nil
}

func (s *accountService) addError(result *models.ImportResult, e models.ValidationError) {
	if len(result.Errors) < maxImportErrors {
		result.Errors = append(result.Errors, e)
	}
}

func getField(record []string, headerMap map[string]int, field string) string {
	if idx, ok := headerMap[field]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
