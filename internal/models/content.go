package models

import (
	"time"
)

// ContentType is the kind of a content item
type ContentType string

const (
	ContentTypeBlog  ContentType = "blog"
	ContentTypeMedia ContentType = "media"
)

// ValidContentTypes defines allowed content types
var ValidContentTypes = map[ContentType]bool{
	ContentTypeBlog:  true,
	ContentTypeMedia: true,
}

// Content is a published post together with its live counters
type Content struct {
	ID           string      `json:"id" db:"id"`
	AuthorID     string      `json:"author_id" db:"author_id"`
	Type         ContentType `json:"type" db:"type"`
	LikeCount    int         `json:"like_count" db:"like_count"`
	CommentCount int         `json:"comment_count" db:"comment_count"`
	ReportCount  int         `json:"report_count" db:"report_count"`
	Hidden       bool        `json:"hidden" db:"hidden"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Like is the relation record of one liker on one content item
type Like struct {
	ContentID string    `json:"content_id" db:"content_id"`
	LikerID   string    `json:"liker_id" db:"liker_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Comment is the relation record of a comment on a content item.
// The comment body lives in the platform's comment store.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	ContentID string    `json:"content_id" db:"content_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EngagementTotals aggregates an author's visible content
type EngagementTotals struct {
	AuthorID      string `json:"author_id" db:"author_id"`
	PostCount     int    `json:"post_count" db:"post_count"`
	TotalLikes    int    `json:"total_likes" db:"total_likes"`
	TotalComments int    `json:"total_comments" db:"total_comments"`
}

// PublishRequest is the body of POST /v1/contents
type PublishRequest struct {
	ContentID string      `json:"content_id,omitempty"`
	Type      ContentType `json:"type"`
}

// CommentRequest is the body of POST /v1/contents/:content_id/comments
type CommentRequest struct {
	CommentID string `json:"comment_id,omitempty"`
}
