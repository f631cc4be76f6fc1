package submissiongrade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/computor-org/computor/pkg/mmodel"
)

func TestSubmissionGradeModelRoundTrip(t *testing.T) {
	t.Parallel()

	gradedAt := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	entity := &mmodel.SubmissionGrade{
		ID:                     "g1",
		ArtifactID:             "a1",
		GradedByCourseMemberID: "m9",
		Grade:                  0.9,
		Status:                 mmodel.GradingStatusCorrectionNecessary,
		Feedback:               "see comments",
		GradedAt:               gradedAt,
	}

	record := &SubmissionGradePostgreSQLModel{}
	record.FromEntity(entity)

	assert.Equal(t, 2, record.Status)

	back := record.ToEntity()
	assert.Equal(t, entity, back)
}

func TestListTags(t *testing.T) {
	t.Parallel()

	r := &SubmissionGradePostgreSQLRepository{}

	tests := []struct {
		name    string
		filters map[string]any
		want    []string
	}{
		{
			name:    "base",
			filters: map[string]any{},
			want:    []string{"submission_grade:list"},
		},
		{
			name:    "by artifact",
			filters: map[string]any{"artifact_id": "a1"},
			want: []string{
				"submission_grade:list",
				"submission_grade:artifact:a1",
				"submission_artifact:a1",
			},
		},
		{
			name:    "by grader and status",
			filters: map[string]any{"graded_by_course_member_id": "m1", "status": 2},
			want: []string{
				"submission_grade:list",
				"submission_grade:grader:m1",
				"submission_grade:status:2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ElementsMatch(t, tt.want, r.ListTags(tt.filters))
		})
	}
}

func TestEntityTagsWithoutArtifact(t *testing.T) {
	t.Parallel()

	r := &SubmissionGradePostgreSQLRepository{}

	grade := &mmodel.SubmissionGrade{
		ID:                     "g1",
		GradedByCourseMemberID: "m9",
		Status:                 mmodel.GradingStatusCorrected,
	}

	tags := r.EntityTags(nil, grade)

	assert.Contains(t, tags, "submission_grade:g1")
	assert.Contains(t, tags, "submission_grade:list")
	assert.Contains(t, tags, "submission_grade:grader:m9")
	assert.Contains(t, tags, "submission_grade:status:1")
}
