package exampleversion

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
)

// Repository provides an interface for operations related to example versions.
// ExampleVersion rows are immutable once created; there is no update surface.
//
//go:generate mockgen --destination=exampleversion.mock.go --package=exampleversion . Repository
type Repository interface {
	Create(ctx context.Context, version *mmodel.ExampleVersion) (*mmodel.ExampleVersion, error)
	Find(ctx context.Context, id string) (*mmodel.ExampleVersion, error)
	FindByExample(ctx context.Context, exampleID string) ([]*mmodel.ExampleVersion, error)
	FindLatestVersion(ctx context.Context, exampleID string) (*mmodel.ExampleVersion, error)
	FindByVersionTag(ctx context.Context, exampleID, versionTag string) (*mmodel.ExampleVersion, error)
	NextVersionNumber(ctx context.Context, exampleID string) (int, error)
}

// DeploymentLookup resolves the deployments referencing an example identifier
// by labeled-tree equality.
type DeploymentLookup interface {
	FindByExampleIdentifier(ctx context.Context, identifier ltree.Path) ([]*mmodel.CourseContentDeployment, error)
}

// ExampleVersionPostgreSQLModel represents the example version into SQL context.
type ExampleVersionPostgreSQLModel struct {
	ID            string
	ExampleID     string
	VersionNumber int
	VersionTag    string
	StoragePath   string
	CreatedAt     time.Time
}

// FromEntity converts an entity ExampleVersion to ExampleVersionPostgreSQLModel.
func (m *ExampleVersionPostgreSQLModel) FromEntity(version *mmodel.ExampleVersion) {
	m.ID = version.ID
	m.ExampleID = version.ExampleID
	m.VersionNumber = version.VersionNumber
	m.VersionTag = version.VersionTag
	m.StoragePath = version.StoragePath
	m.CreatedAt = version.CreatedAt
}

// ToEntity converts an ExampleVersionPostgreSQLModel to entity ExampleVersion.
func (m *ExampleVersionPostgreSQLModel) ToEntity() *mmodel.ExampleVersion {
	return &mmodel.ExampleVersion{
		ID:            m.ID,
		ExampleID:     m.ExampleID,
		VersionNumber: m.VersionNumber,
		VersionTag:    m.VersionTag,
		StoragePath:   m.StoragePath,
		CreatedAt:     m.CreatedAt,
	}
}
