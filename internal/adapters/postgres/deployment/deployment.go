package deployment

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
)

// Repository provides an interface for operations related to course content deployments.
//
//go:generate mockgen --destination=deployment.mock.go --package=deployment . Repository
type Repository interface {
	Create(ctx context.Context, d *mmodel.CourseContentDeployment) (*mmodel.CourseContentDeployment, error)
	Find(ctx context.Context, id string) (*mmodel.CourseContentDeployment, error)
	FindByContent(ctx context.Context, courseContentID string) (*mmodel.CourseContentDeployment, error)
	FindByExampleIdentifier(ctx context.Context, identifier ltree.Path) ([]*mmodel.CourseContentDeployment, error)
	FindByStatus(ctx context.Context, status string) ([]*mmodel.CourseContentDeployment, error)
	Update(ctx context.Context, id string, d *mmodel.CourseContentDeployment) (*mmodel.CourseContentDeployment, error)
	UpdateStatus(ctx context.Context, id, status, message string) (*mmodel.CourseContentDeployment, error)
	Delete(ctx context.Context, id string) error
}

// DeploymentPostgreSQLModel represents the course content deployment into SQL context.
type DeploymentPostgreSQLModel struct {
	ID                string
	CourseContentID   string
	ExampleVersionID  *string
	ExampleIdentifier ltree.Path
	DeploymentStatus  string
	WorkflowID        *string
	Message           string
	DeployedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FromEntity converts an entity CourseContentDeployment to DeploymentPostgreSQLModel.
func (m *DeploymentPostgreSQLModel) FromEntity(d *mmodel.CourseContentDeployment) {
	m.ID = d.ID
	m.CourseContentID = d.CourseContentID
	m.ExampleVersionID = d.ExampleVersionID
	m.ExampleIdentifier = d.ExampleIdentifier
	m.DeploymentStatus = d.DeploymentStatus
	m.WorkflowID = d.WorkflowID
	m.Message = d.Message
	m.DeployedAt = d.DeployedAt
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
}

// ToEntity converts a DeploymentPostgreSQLModel to entity CourseContentDeployment.
func (m *DeploymentPostgreSQLModel) ToEntity() *mmodel.CourseContentDeployment {
	return &mmodel.CourseContentDeployment{
		ID:                m.ID,
		CourseContentID:   m.CourseContentID,
		ExampleVersionID:  m.ExampleVersionID,
		ExampleIdentifier: m.ExampleIdentifier,
		DeploymentStatus:  m.DeploymentStatus,
		WorkflowID:        m.WorkflowID,
		Message:           m.Message,
		DeployedAt:        m.DeployedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
