package submissiongroup

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
)

// Repository provides an interface for operations related to submission group entities.
//
//go:generate mockgen --destination=submissiongroup.mock.go --package=submissiongroup . Repository
type Repository interface {
	Create(ctx context.Context, group *mmodel.SubmissionGroup) (*mmodel.SubmissionGroup, error)
	Find(ctx context.Context, id string) (*mmodel.SubmissionGroup, error)
	FindByContent(ctx context.Context, courseContentID string) ([]*mmodel.SubmissionGroup, error)
	FindByMember(ctx context.Context, courseMemberID string) ([]*mmodel.SubmissionGroup, error)
	AddMember(ctx context.Context, groupID, courseMemberID string) (*mmodel.SubmissionGroupMember, error)
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// SubmissionGroupPostgreSQLModel represents the submission group into SQL context.
type SubmissionGroupPostgreSQLModel struct {
	ID              string
	CourseID        string
	CourseContentID string
	MaxGroupSize    int
	Properties      mpostgres.JSONBMap
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FromEntity converts an entity SubmissionGroup to SubmissionGroupPostgreSQLModel.
func (m *SubmissionGroupPostgreSQLModel) FromEntity(group *mmodel.SubmissionGroup) {
	m.ID = group.ID
	m.CourseID = group.CourseID
	m.CourseContentID = group.CourseContentID
	m.MaxGroupSize = group.MaxGroupSize
	m.Properties = group.Properties
	m.CreatedAt = group.CreatedAt
	m.UpdatedAt = group.UpdatedAt
}

// ToEntity converts a SubmissionGroupPostgreSQLModel to entity SubmissionGroup.
func (m *SubmissionGroupPostgreSQLModel) ToEntity() *mmodel.SubmissionGroup {
	return &mmodel.SubmissionGroup{
		ID:              m.ID,
		CourseID:        m.CourseID,
		CourseContentID: m.CourseContentID,
		MaxGroupSize:    m.MaxGroupSize,
		Properties:      m.Properties,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
