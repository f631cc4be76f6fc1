package submissiongrade

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg/mmodel"
)

// Repository provides an interface for operations related to submission grades.
// Grades are append-only; the latest grade per artifact wins.
//
//go:generate mockgen --destination=submissiongrade.mock.go --package=submissiongrade . Repository
type Repository interface {
	Create(ctx context.Context, grade *mmodel.SubmissionGrade) (*mmodel.SubmissionGrade, error)
	Find(ctx context.Context, id string) (*mmodel.SubmissionGrade, error)
	FindByArtifact(ctx context.Context, artifactID string) ([]*mmodel.SubmissionGrade, error)
	FindLatestByArtifact(ctx context.Context, artifactID string) (*mmodel.SubmissionGrade, error)
	FindByGrader(ctx context.Context, graderID string) ([]*mmodel.SubmissionGrade, error)
	FindByStatus(ctx context.Context, status mmodel.GradingStatus) ([]*mmodel.SubmissionGrade, error)
	AverageGradeForArtifact(ctx context.Context, artifactID string) (*float64, error)
}

// SubmissionGradePostgreSQLModel represents the submission grade into SQL context.
type SubmissionGradePostgreSQLModel struct {
	ID                     string
	ArtifactID             string
	GradedByCourseMemberID string
	Grade                  float64
	Status                 int
	Feedback               string
	GradedAt               time.Time
	CreatedAt              time.Time
}

// FromEntity converts an entity SubmissionGrade to SubmissionGradePostgreSQLModel.
func (m *SubmissionGradePostgreSQLModel) FromEntity(grade *mmodel.SubmissionGrade) {
	m.ID = grade.ID
	m.ArtifactID = grade.ArtifactID
	m.GradedByCourseMemberID = grade.GradedByCourseMemberID
	m.Grade = grade.Grade
	m.Status = int(grade.Status)
	m.Feedback = grade.Feedback
	m.GradedAt = grade.GradedAt
	m.CreatedAt = grade.CreatedAt
}

// ToEntity converts a SubmissionGradePostgreSQLModel to entity SubmissionGrade.
func (m *SubmissionGradePostgreSQLModel) ToEntity() *mmodel.SubmissionGrade {
	return &mmodel.SubmissionGrade{
		ID:                     m.ID,
		ArtifactID:             m.ArtifactID,
		GradedByCourseMemberID: m.GradedByCourseMemberID,
		Grade:                  m.Grade,
		Status:                 mmodel.GradingStatus(m.Status),
		Feedback:               m.Feedback,
		GradedAt:               m.GradedAt,
		CreatedAt:              m.CreatedAt,
	}
}
