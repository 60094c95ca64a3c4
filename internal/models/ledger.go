package models

import (
	"time"
)

// Reason explains why a ledger entry was written
type Reason string

const (
	ReasonContentPublished        Reason = "content_published"
	ReasonContentDeleted          Reason = "content_deleted"
	ReasonLikeGiven               Reason = "like_given"
	ReasonLikeReceived            Reason = "like_received"
	ReasonLikeReversedGiven       Reason = "like_reversed_given"
	ReasonLikeReversedReceived    Reason = "like_reversed_received"
	ReasonCommentGiven            Reason = "comment_given"
	ReasonCommentReceived         Reason = "comment_received"
	ReasonCommentReversedGiven    Reason = "comment_reversed_given"
	ReasonCommentReversedReceived Reason = "comment_reversed_received"
	ReasonModerationAdjustment    Reason = "moderation_adjustment"
)

// ValidReasons defines allowed ledger reasons
var ValidReasons = map[Reason]bool{
	ReasonContentPublished:        true,
	ReasonContentDeleted:          true,
	ReasonLikeGiven:               true,
	ReasonLikeReceived:            true,
	ReasonLikeReversedGiven:       true,
	ReasonLikeReversedReceived:    true,
	ReasonCommentGiven:            true,
	ReasonCommentReceived:         true,
	ReasonCommentReversedGiven:    true,
	ReasonCommentReversedReceived: true,
	ReasonModerationAdjustment:    true,
}

// ReversalOf maps an award reason to the reason of its reversal
var ReversalOf = map[Reason]Reason{
	ReasonContentPublished: ReasonContentDeleted,
	ReasonLikeGiven:        ReasonLikeReversedGiven,
	ReasonLikeReceived:     ReasonLikeReversedReceived,
	ReasonCommentGiven:     ReasonCommentReversedGiven,
	ReasonCommentReceived:  ReasonCommentReversedReceived,
}

// IsAward reports whether entries with this reason carry a positive delta
func (r Reason) IsAward() bool {
	_, ok := ReversalOf[r]
	return ok
}

// IsReversal reports whether entries with this reason carry a negative delta
func (r Reason) IsReversal() bool {
	for _, rev := range ReversalOf {
		if rev == r {
			return true
		}
	}
	return false
}

// Tariffs in points
const (
	TariffPublishBlog  int64 = 150
	TariffPublishMedia int64 = 100
	TariffLike         int64 = 10
	TariffComment      int64 = 10
)

// BasePublishTariff returns the points awarded for publishing content of type t
func BasePublishTariff(t ContentType) int64 {
	switch t {
	case ContentTypeBlog:
		return TariffPublishBlog
	case ContentTypeMedia:
		return TariffPublishMedia
	default:
		return 0
	}
}

// Balance is the running point total of one user
type Balance struct {
	UserID        string    `json:"user_id" db:"user_id"`
	PointsBalance int64     `json:"points_balance" db:"points_balance"`
	LastUpdatedAt time.Time `json:"last_updated_at" db:"last_updated_at"`
}

// LedgerEntry is one immutable point transfer.
// Delta is the requested delta, not the clamped change to the balance.
type LedgerEntry struct {
	ID          string    `json:"entry_id" db:"id"`
	Seq         int64     `json:"seq" db:"seq"`
	UserID      string    `json:"user_id" db:"user_id"`
	Delta       int64     `json:"delta" db:"delta"`
	Reason      Reason    `json:"reason" db:"reason"`
	ReferenceID string    `json:"reference_id" db:"reference_id"`
	ContentID   string    `json:"content_id,omitempty" db:"content_id"`
	Note        string    `json:"note,omitempty" db:"note"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// BalanceDrift is reported by the audit when a stored balance does not match its entries
type BalanceDrift struct {
	UserID   string `json:"user_id"`
	Stored   int64  `json:"stored_balance"`
	Replayed int64  `json:"replayed_balance"`
	Entries  int    `json:"entries"`
}

// AuditReport is the result of a balance audit
type AuditReport struct {
	UsersChecked   int            `json:"users_checked"`
	EntriesChecked int            `json:"entries_checked"`
	Drifts         []BalanceDrift `json:"drifts"`
	DurationMs     int64          `json:"duration_ms"`
}

// AdjustmentRequest is the body of an admin moderation adjustment
type AdjustmentRequest struct {
	Delta int64  `json:"delta"`
	Note  string `json:"note"`
}

// LikeReference returns the reference id of the like of likerID on contentID
func LikeReference(contentID, likerID string) string {
	return contentID + ":" + likerID
}
