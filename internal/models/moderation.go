package models

import (
	"time"
)

// ReportReason is the category a reporter picked
type ReportReason string

const (
	ReportReasonSpam      ReportReason = "spam"
	ReportReasonAbuse     ReportReason = "abuse"
	ReportReasonCopyright ReportReason = "copyright"
	ReportReasonExplicit  ReportReason = "explicit"
	ReportReasonOther     ReportReason = "other"
)

// ValidReportReasons defines allowed report reasons
var ValidReportReasons = map[ReportReason]bool{
	ReportReasonSpam:      true,
	ReportReasonAbuse:     true,
	ReportReasonCopyright: true,
	ReportReasonExplicit:  true,
	ReportReasonOther:     true,
}

// MaxReportDetailsLength is the maximum length of report details in characters
const MaxReportDetailsLength = 1000

// Report is one user's report against one content item
type Report struct {
	ContentID  string       `json:"content_id" db:"content_id"`
	ReporterID string       `json:"reporter_id" db:"reporter_id"`
	Reason     ReportReason `json:"reason" db:"reason"`
	Details    string       `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// ReportRequest is the body of POST /v1/contents/:content_id/reports
type ReportRequest struct {
	Reason  ReportReason `json:"reason"`
	Details string       `json:"details"`
}

// ReportOutcome is returned after a report was recorded
type ReportOutcome struct {
	ContentID   string `json:"content_id"`
	ReportCount int    `json:"report_count"`
	Hidden      bool   `json:"hidden"`
	// JustHidden is true only for the report that crossed the threshold
	JustHidden bool `json:"just_hidden"`
}
