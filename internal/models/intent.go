package models

import (
	"time"
)

// IntentKind names the workflow an intent tracks
type IntentKind string

const (
	IntentPublish   IntentKind = "publish"
	IntentDelete    IntentKind = "delete"
	IntentLike      IntentKind = "like"
	IntentUnlike    IntentKind = "unlike"
	IntentComment   IntentKind = "comment"
	IntentUncomment IntentKind = "uncomment"
)

// IntentStatus represents the status of a workflow intent
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusRunning   IntentStatus = "running"
	IntentStatusCompleted IntentStatus = "completed"
	IntentStatusAborted   IntentStatus = "aborted"
	IntentStatusFailed    IntentStatus = "failed"
)

// IntentPayload holds what a workflow needs to be resumed
type IntentPayload struct {
	ContentID   string      `json:"content_id"`
	ContentType ContentType `json:"content_type,omitempty"`
	AuthorID    string      `json:"author_id"`
	ActorID     string      `json:"actor_id,omitempty"`
	CommentID   string      `json:"comment_id,omitempty"`
}

// Intent records a multi-step workflow before its first step runs, so that
// an interrupted workflow can be driven to completion later.
type Intent struct {
	ID        string        `json:"id" db:"id"`
	Kind      IntentKind    `json:"kind" db:"kind"`
	Status    IntentStatus  `json:"status" db:"status"`
	Payload   IntentPayload `json:"payload" db:"payload"`
	Attempts  int           `json:"attempts" db:"attempts"`
	LastError string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// SweepResult summarises one reconciliation sweep
type SweepResult struct {
	Claimed    int   `json:"claimed"`
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	Retrying   int   `json:"retrying"`
	DurationMs int64 `json:"duration_ms"`
}
