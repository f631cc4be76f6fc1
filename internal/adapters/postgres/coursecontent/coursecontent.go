package coursecontent

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
)

// Repository provides an interface for operations related to course content entities.
//
//go:generate mockgen --destination=coursecontent.mock.go --package=coursecontent . Repository
type Repository interface {
	Create(ctx context.Context, content *mmodel.CourseContent) (*mmodel.CourseContent, error)
	Find(ctx context.Context, id string) (*mmodel.CourseContent, error)
	FindByCourse(ctx context.Context, courseID string) ([]*mmodel.CourseContent, error)
	FindSubmittableByCourse(ctx context.Context, courseID string) ([]*mmodel.CourseContent, error)
	FindByPathPrefix(ctx context.Context, courseID string, prefix ltree.Path) ([]*mmodel.CourseContent, error)
	Update(ctx context.Context, id string, content *mmodel.CourseContent) (*mmodel.CourseContent, error)
	Archive(ctx context.Context, id string) error
}

// CourseContentPostgreSQLModel represents the course content into SQL context.
type CourseContentPostgreSQLModel struct {
	ID                  string
	CourseID            string
	CourseContentTypeID string
	CourseContentKindID string
	Title               string
	Path                ltree.Path
	Position            float64
	Properties          mpostgres.JSONBMap
	ArchivedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FromEntity converts an entity CourseContent to CourseContentPostgreSQLModel.
func (m *CourseContentPostgreSQLModel) FromEntity(content *mmodel.CourseContent) {
	m.ID = content.ID
	m.CourseID = content.CourseID
	m.CourseContentTypeID = content.CourseContentTypeID
	m.CourseContentKindID = content.CourseContentKindID
	m.Title = content.Title
	m.Path = content.Path
	m.Position = content.Position
	m.Properties = content.Properties
	m.ArchivedAt = content.ArchivedAt
	m.CreatedAt = content.CreatedAt
	m.UpdatedAt = content.UpdatedAt
}

// ToEntity converts a CourseContentPostgreSQLModel to entity CourseContent.
func (m *CourseContentPostgreSQLModel) ToEntity() *mmodel.CourseContent {
	return &mmodel.CourseContent{
		ID:                  m.ID,
		CourseID:            m.CourseID,
		CourseContentTypeID: m.CourseContentTypeID,
		CourseContentKindID: m.CourseContentKindID,
		Title:               m.Title,
		Path:                m.Path,
		Position:            m.Position,
		Properties:          m.Properties,
		ArchivedAt:          m.ArchivedAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
