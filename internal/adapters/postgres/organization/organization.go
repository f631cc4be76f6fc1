package organization

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
	"github.com/computor-org/computor/pkg/net/http"
)

// Repository provides an interface for operations related to organization entities.
//
//go:generate mockgen --destination=organization.mock.go --package=organization . Repository
type Repository interface {
	Create(ctx context.Context, org *mmodel.Organization) (*mmodel.Organization, error)
	Find(ctx context.Context, id string) (*mmodel.Organization, error)
	FindAll(ctx context.Context, filter http.Pagination) ([]*mmodel.Organization, error)
	FindByPath(ctx context.Context, path ltree.Path) (*mmodel.Organization, error)
	Update(ctx context.Context, id string, org *mmodel.Organization) (*mmodel.Organization, error)
	Delete(ctx context.Context, id string) error
}

// OrganizationPostgreSQLModel represents the organization into SQL context.
type OrganizationPostgreSQLModel struct {
	ID         string
	Title      string
	Path       ltree.Path
	Properties mpostgres.JSONBMap
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// FromEntity converts an entity Organization to OrganizationPostgreSQLModel.
func (m *OrganizationPostgreSQLModel) FromEntity(org *mmodel.Organization) {
	m.ID = org.ID
	m.Title = org.Title
	m.Path = org.Path
	m.Properties = org.Properties
	m.CreatedAt = org.CreatedAt
	m.UpdatedAt = org.UpdatedAt
	m.DeletedAt = org.DeletedAt
}

// ToEntity converts an OrganizationPostgreSQLModel to entity Organization.
func (m *OrganizationPostgreSQLModel) ToEntity() *mmodel.Organization {
	return &mmodel.Organization{
		ID:         m.ID,
		Title:      m.Title,
		Path:       m.Path,
		Properties: m.Properties,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		DeletedAt:  m.DeletedAt,
	}
}
