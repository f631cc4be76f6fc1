package coursefamily

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
)

// Repository provides an interface for operations related to course family entities.
//
//go:generate mockgen --destination=coursefamily.mock.go --package=coursefamily . Repository
type Repository interface {
	Create(ctx context.Context, family *mmodel.CourseFamily) (*mmodel.CourseFamily, error)
	Find(ctx context.Context, id string) (*mmodel.CourseFamily, error)
	FindByOrganization(ctx context.Context, organizationID string) ([]*mmodel.CourseFamily, error)
	Update(ctx context.Context, id string, family *mmodel.CourseFamily) (*mmodel.CourseFamily, error)
	Delete(ctx context.Context, id string) error
}

// CourseFamilyPostgreSQLModel represents the course family into SQL context.
type CourseFamilyPostgreSQLModel struct {
	ID             string
	OrganizationID string
	Title          string
	Path           ltree.Path
	Properties     mpostgres.JSONBMap
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// FromEntity converts an entity CourseFamily to CourseFamilyPostgreSQLModel.
func (m *CourseFamilyPostgreSQLModel) FromEntity(family *mmodel.CourseFamily) {
	m.ID = family.ID
	m.OrganizationID = family.OrganizationID
	m.Title = family.Title
	m.Path = family.Path
	m.Properties = family.Properties
	m.CreatedAt = family.CreatedAt
	m.UpdatedAt = family.UpdatedAt
	m.DeletedAt = family.DeletedAt
}

// ToEntity converts a CourseFamilyPostgreSQLModel to entity CourseFamily.
func (m *CourseFamilyPostgreSQLModel) ToEntity() *mmodel.CourseFamily {
	return &mmodel.CourseFamily{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Title:          m.Title,
		Path:           m.Path,
		Properties:     m.Properties,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		DeletedAt:      m.DeletedAt,
	}
}
