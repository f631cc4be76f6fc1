package submissionartifact

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
)

// Repository provides an interface for operations related to submission artifacts.
// Artifacts are immutable once uploaded; there is no update surface.
//
//go:generate mockgen --destination=submissionartifact.mock.go --package=submissionartifact . Repository
type Repository interface {
	Create(ctx context.Context, artifact *mmodel.SubmissionArtifact) (*mmodel.SubmissionArtifact, error)
	Find(ctx context.Context, id string) (*mmodel.SubmissionArtifact, error)
	FindBySubmissionGroup(ctx context.Context, submissionGroupID string) ([]*mmodel.SubmissionArtifact, error)
	FindOfficialSubmissions(ctx context.Context, submissionGroupID string) ([]*mmodel.SubmissionArtifact, error)
	FindLatestByGroup(ctx context.Context, submissionGroupID string) (*mmodel.SubmissionArtifact, error)
	Delete(ctx context.Context, id string) error
}

// SubmissionArtifactPostgreSQLModel represents the submission artifact into SQL context.
type SubmissionArtifactPostgreSQLModel struct {
	ID                       string
	SubmissionGroupID        string
	UploadedByCourseMemberID string
	Submit                   bool
	ContentSize              int64
	Properties               mpostgres.JSONBMap
	UploadedAt               time.Time
	CreatedAt                time.Time
}

// FromEntity converts an entity SubmissionArtifact to SubmissionArtifactPostgreSQLModel.
func (m *SubmissionArtifactPostgreSQLModel) FromEntity(artifact *mmodel.SubmissionArtifact) {
	m.ID = artifact.ID
	m.SubmissionGroupID = artifact.SubmissionGroupID
	m.UploadedByCourseMemberID = artifact.UploadedByCourseMemberID
	m.Submit = artifact.Submit
	m.ContentSize = artifact.ContentSize
	m.Properties = artifact.Properties
	m.UploadedAt = artifact.UploadedAt
	m.CreatedAt = artifact.CreatedAt
}

// ToEntity converts a SubmissionArtifactPostgreSQLModel to entity SubmissionArtifact.
func (m *SubmissionArtifactPostgreSQLModel) ToEntity() *mmodel.SubmissionArtifact {
	return &mmodel.SubmissionArtifact{
		ID:                       m.ID,
		SubmissionGroupID:        m.SubmissionGroupID,
		UploadedByCourseMemberID: m.UploadedByCourseMemberID,
		Submit:                   m.Submit,
		ContentSize:              m.ContentSize,
		Properties:               m.Properties,
		UploadedAt:               m.UploadedAt,
		CreatedAt:                m.CreatedAt,
	}
}
