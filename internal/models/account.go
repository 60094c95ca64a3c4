package models

import (
	"time"
)

// AccountType decides which rankings a user appears on
type AccountType string

const (
	AccountTypeCreator AccountType = "creator"
	AccountTypeViewer  AccountType = "viewer"
)

// ValidAccountTypes defines allowed account types
var ValidAccountTypes = map[AccountType]bool{
	AccountTypeCreator: true,
	AccountTypeViewer:  true,
}

// Account is the engine's view of a platform user
type Account struct {
	ID          string      `json:"id" db:"id"`
	DisplayName string      `json:"display_name" db:"display_name"`
	AccountType AccountType `json:"account_type" db:"account_type"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// AccountCSV represents an account record from CSV import
type AccountCSV struct {
	ID          string `csv:"id"`
	DisplayName string `csv:"display_name"`
	AccountType string `csv:"account_type"`
}

// ImportResult summarises an account CSV import
type ImportResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}
