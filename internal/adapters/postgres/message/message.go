package message

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/mmodel"
)

// Repository provides an interface for operations related to message entities.
//
//go:generate mockgen --destination=message.mock.go --package=message . Repository
type Repository interface {
	Create(ctx context.Context, msg *mmodel.Message) (*mmodel.Message, error)
	Find(ctx context.Context, id string) (*mmodel.Message, error)
	FindByCourseContent(ctx context.Context, courseContentID string) ([]*mmodel.Message, error)
	FindBySubmissionGroup(ctx context.Context, submissionGroupID string) ([]*mmodel.Message, error)
	CountUnreadByContent(ctx context.Context, readerUserID, courseContentID string) (int, error)
	MarkRead(ctx context.Context, messageID, readerUserID string) error
	Archive(ctx context.Context, id string) error
}

// MessagePostgreSQLModel represents the message into SQL context.
type MessagePostgreSQLModel struct {
	ID                string
	AuthorID          string
	TargetUserID      *string
	SubmissionGroupID *string
	CourseContentID   *string
	CourseID          *string
	Title             string
	Content           string
	ArchivedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FromEntity converts an entity Message to MessagePostgreSQLModel.
func (m *MessagePostgreSQLModel) FromEntity(msg *mmodel.Message) {
	m.ID = msg.ID
	m.AuthorID = msg.AuthorID
	m.TargetUserID = msg.TargetUserID
	m.SubmissionGroupID = msg.SubmissionGroupID
	m.CourseContentID = msg.CourseContentID
	m.CourseID = msg.CourseID
	m.Title = msg.Title
	m.Content = msg.Content
	m.ArchivedAt = msg.ArchivedAt
	m.CreatedAt = msg.CreatedAt
	m.UpdatedAt = msg.UpdatedAt
}

// ToEntity converts a MessagePostgreSQLModel to entity Message.
func (m *MessagePostgreSQLModel) ToEntity() *mmodel.Message {
	return &mmodel.Message{
		ID:                m.ID,
		AuthorID:          m.AuthorID,
		TargetUserID:      m.TargetUserID,
		SubmissionGroupID: m.SubmissionGroupID,
		CourseContentID:   m.CourseContentID,
		CourseID:          m.CourseID,
		Title:             m.Title,
		Content:           m.Content,
		ArchivedAt:        m.ArchivedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
