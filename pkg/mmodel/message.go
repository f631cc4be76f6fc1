package mmodel

import "time"

// Message targets exactly one of user, submission group, course content or
// course. Soft-deletable via ArchivedAt.
type Message struct {
	ID                string     `json:"id"`
	AuthorID          string     `json:"authorId"`
	TargetUserID      *string    `json:"targetUserId"`
	SubmissionGroupID *string    `json:"submissionGroupId"`
	CourseContentID   *string    `json:"courseContentId"`
	CourseID          *string    `json:"courseId"`
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	ArchivedAt        *time.Time `json:"archivedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// MessageRead records that a reader has seen a message. Absence of a row is
// what makes a message count as unread.
type MessageRead struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"messageId"`
	ReaderUserID string    `json:"readerUserId"`
	ReadAt       time.Time `json:"readAt"`
}
