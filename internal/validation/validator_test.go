package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
)

func TestCheckID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"handle with dots", "alice.smith", false},
		{"email-like", "alice@example.com", false},
		{"empty", "", true},
		{"reserved separator", "content:1", true},
		{"whitespace", "alice smith", true},
		{"leading dash", "-alice", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckID("user_id", tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCheckIDs(t *testing.T) {
	if err := CheckIDs("liker_id", "bob", "content_id", "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckIDs("liker_id", "bob", "content_id", "")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Field != "content_id" {
		t.Errorf("expected field content_id, got %s", appErr.Field)
	}
}

func TestCheckLedgerDelta(t *testing.T) {
	tests := []struct {
		name    string
		delta   int64
		reason  models.Reason
		wantErr bool
	}{
		{"award positive", 150, models.ReasonContentPublished, false},
		{"award negative", -150, models.ReasonContentPublished, true},
		{"reversal negative", -10, models.ReasonLikeReversedGiven, false},
		{"reversal positive", 10, models.ReasonCommentReversedReceived, true},
		{"adjustment either sign", -25, models.ReasonModerationAdjustment, false},
		{"zero", 0, models.ReasonModerationAdjustment, true},
		{"unknown reason", 10, models.Reason("bonus"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLedgerDelta(tt.delta, tt.reason)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckLedgerDelta(%d, %s) error = %v, wantErr %v", tt.delta, tt.reason, err, tt.wantErr)
			}
		})
	}
}

func TestCheckReport(t *testing.T) {
	if err := CheckReport(&models.ReportRequest{Reason: models.ReportReasonSpam, Details: "buy now"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckReport(&models.ReportRequest{Reason: "boring"}); err == nil {
		t.Error("expected error for unknown reason")
	}
	long := strings.Repeat("x", models.MaxReportDetailsLength+1)
	if err := CheckReport(&models.ReportRequest{Reason: models.ReportReasonOther, Details: long}); err == nil {
		t.Error("expected error for long details")
	}
}

func TestValidateAccount(t *testing.T) {
	validator := NewValidator()
	validator.AddAccountID("taken")

	tests := []struct {
		name       string
		account    *models.AccountCSV
		wantFields []string
	}{
		{
			name:    "valid creator",
			account: &models.AccountCSV{ID: "alice", DisplayName: "Alice", AccountType: "creator"},
		},
		{
			name:    "type is case insensitive",
			account: &models.AccountCSV{ID: "bob", AccountType: "Viewer"},
		},
		{
			name:       "missing id and type",
			account:    &models.AccountCSV{DisplayName: "Nobody"},
			wantFields: []string{"id", "account_type"},
		},
		{
			name:       "duplicate id",
			account:    &models.AccountCSV{ID: "taken", AccountType: "creator"},
			wantFields: []string{"id"},
		},
		{
			name:       "unknown type",
			account:    &models.AccountCSV{ID: "carol", AccountType: "admin"},
			wantFields: []string{"account_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validator.ValidateAccount(tt.account, 2)
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("expected %d errors, got %d: %+v", len(tt.wantFields), len(errs), errs)
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("error %d: expected field %s, got %s", i, field, errs[i].Field)
				}
			}
		})
	}
}
