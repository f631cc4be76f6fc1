package coursemember

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/mmodel"
)

// Repository provides an interface for operations related to course member entities.
//
//go:generate mockgen --destination=coursemember.mock.go --package=coursemember . Repository
type Repository interface {
	Create(ctx context.Context, member *mmodel.CourseMember) (*mmodel.CourseMember, error)
	Find(ctx context.Context, id string) (*mmodel.CourseMember, error)
	FindByCourse(ctx context.Context, courseID string) ([]*mmodel.CourseMember, error)
	FindByUser(ctx context.Context, userID string) ([]*mmodel.CourseMember, error)
	FindByCourseAndUser(ctx context.Context, courseID, userID string) (*mmodel.CourseMember, error)
	FindByRole(ctx context.Context, courseID, roleID string) ([]*mmodel.CourseMember, error)
	ListByIDs(ctx context.Context, ids []string) ([]*mmodel.CourseMember, error)
	Update(ctx context.Context, id string, member *mmodel.CourseMember) (*mmodel.CourseMember, error)
	Delete(ctx context.Context, id string) error
}

// PermissionInvalidator is the external permission-cache collaborator.
// Membership writes must flush the member's permission scope.
type PermissionInvalidator interface {
	InvalidateUserCourseMemberships(ctx context.Context, userID string)
}

// CourseMemberPostgreSQLModel represents the course member into SQL context.
type CourseMemberPostgreSQLModel struct {
	ID           string
	CourseID     string
	UserID       string
	CourseRoleID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// FromEntity converts an entity CourseMember to CourseMemberPostgreSQLModel.
func (m *CourseMemberPostgreSQLModel) FromEntity(member *mmodel.CourseMember) {
	m.ID = member.ID
	m.CourseID = member.CourseID
	m.UserID = member.UserID
	m.CourseRoleID = member.CourseRoleID
	m.CreatedAt = member.CreatedAt
	m.UpdatedAt = member.UpdatedAt
	m.DeletedAt = member.DeletedAt
}

// ToEntity converts a CourseMemberPostgreSQLModel to entity CourseMember.
func (m *CourseMemberPostgreSQLModel) ToEntity() *mmodel.CourseMember {
	return &mmodel.CourseMember{
		ID:           m.ID,
		CourseID:     m.CourseID,
		UserID:       m.UserID,
		CourseRoleID: m.CourseRoleID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		DeletedAt:    m.DeletedAt,
	}
}
