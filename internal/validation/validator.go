package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/points-ledger-engine/internal/apperror"
	"github.com/points-ledger-engine/internal/models"
)

// MaxIDLength is the longest id the engine accepts
const MaxIDLength = 128

// ':' is reserved as the separator of like reference ids
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]*$`)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// CheckID returns an InvalidInput error when id is not a usable identifier
func CheckID(field, id string) error {
	if e := validateID(field, id); e != nil {
		return apperror.InvalidInput(e.Field, e.Message)
	}
	return nil
}

// CheckIDs validates field/value pairs and returns the first failure
func CheckIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := CheckID(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func validateID(field, id string) *ValidationError {
	switch {
	case id == "":
		return &ValidationError{Field: field, Message: field + " is required"}
	case len(id) > MaxIDLength:
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, MaxIDLength), Value: id}
	case !idRegex.MatchString(id):
		return &ValidationError{Field: field, Message: field + " contains invalid characters", Value: id}
	}
	return nil
}

// CheckContentType validates a content type
func CheckContentType(t models.ContentType) error {
	if !models.ValidContentTypes[t] {
		return apperror.InvalidInput("type", "type must be one of: blog, media")
	}
	return nil
}

// CheckReport validates a report request
func CheckReport(req *models.ReportRequest) error {
	if !models.ValidReportReasons[req.Reason] {
		return apperror.InvalidInput("reason", "reason must be one of: spam, abuse, copyright, explicit, other")
	}
	if utf8.RuneCountInString(req.Details) > models.MaxReportDetailsLength {
		return apperror.InvalidInput("details", fmt.Sprintf("details must be at most %d characters", models.MaxReportDetailsLength))
	}
	return nil
}

// CheckLedgerDelta validates a delta against the sign its reason requires
func CheckLedgerDelta(delta int64, reason models.Reason) error {
	if !models.ValidReasons[reason] {
		return apperror.InvalidInput("reason", fmt.Sprintf("unknown reason %q", reason))
	}
	if delta == 0 {
		return apperror.InvalidInput("delta", "delta must not be zero")
	}
	if reason.IsAward() && delta < 0 {
		return apperror.InvalidInput("delta", fmt.Sprintf("%s requires a positive delta", reason))
	}
	if reason.IsReversal() && delta > 0 {
		return apperror.InvalidInput("delta", fmt.Sprintf("%s requires a negative delta", reason))
	}
	return nil
}

// Validator validates account import rows and remembers the ids it has seen
type Validator struct {
	accountIDCache map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		accountIDCache: make(map[string]bool),
	}
}

// AddAccountID adds an account ID to the uniqueness cache
func (v *Validator) AddAccountID(id string) {
	v.accountIDCache[id] = true
}

// ValidateAccount validates an account record
func (v *Validator) ValidateAccount(account *models.AccountCSV, lineNum int) []ValidationError {
	var errors []ValidationError

	if e := validateID("id", account.ID); e != nil {
		errors = append(errors, *e)
	} else if v.accountIDCache[account.ID] {
		errors = append(errors, ValidationError{Field: "id", Message: "duplicate id", Value: account.ID})
	}

	if utf8.RuneCountInString(account.DisplayName) > 100 {
		errors = append(errors, ValidationError{Field: "display_name", Message: "display_name must be at most 100 characters"})
	}

	accountType := models.AccountType(strings.ToLower(account.AccountType))
	if account.AccountType == "" {
		errors = append(errors, ValidationError{Field: "account_type", Message: "account_type is required"})
	} else if !models.ValidAccountTypes[accountType] {
		errors = append(errors, ValidationError{
			Field:   "account_type",
			Message: "invalid account_type, must be one of: creator, viewer",
			Value:   account.AccountType,
		})
	}

	return errors
}
