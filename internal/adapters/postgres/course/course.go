package course

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
)

// Repository provides an interface for operations related to course entities.
//
//go:generate mockgen --destination=course.mock.go --package=course . Repository
type Repository interface {
	Create(ctx context.Context, course *mmodel.Course) (*mmodel.Course, error)
	Find(ctx context.Context, id string) (*mmodel.Course, error)
	FindByCourseFamily(ctx context.Context, courseFamilyID string) ([]*mmodel.Course, error)
	FindActive(ctx context.Context) ([]*mmodel.Course, error)
	Update(ctx context.Context, id string, course *mmodel.Course) (*mmodel.Course, error)
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// CoursePostgreSQLModel represents the course into SQL context.
type CoursePostgreSQLModel struct {
	ID             string
	CourseFamilyID string
	OrganizationID string
	Title          string
	Path           ltree.Path
	Properties     mpostgres.JSONBMap
	ArchivedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// FromEntity converts an entity Course to CoursePostgreSQLModel.
func (m *CoursePostgreSQLModel) FromEntity(course *mmodel.Course) {
	m.ID = course.ID
	m.CourseFamilyID = course.CourseFamilyID
	m.OrganizationID = course.OrganizationID
	m.Title = course.Title
	m.Path = course.Path
	m.Properties = course.Properties
	m.ArchivedAt = course.ArchivedAt
	m.CreatedAt = course.CreatedAt
	m.UpdatedAt = course.UpdatedAt
	m.DeletedAt = course.DeletedAt
}

// ToEntity converts a CoursePostgreSQLModel to entity Course.
func (m *CoursePostgreSQLModel) ToEntity() *mmodel.Course {
	return &mmodel.Course{
		ID:             m.ID,
		CourseFamilyID: m.CourseFamilyID,
		OrganizationID: m.OrganizationID,
		Title:          m.Title,
		Path:           m.Path,
		Properties:     m.Properties,
		ArchivedAt:     m.ArchivedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		DeletedAt:      m.DeletedAt,
	}
}
