package views

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
)

func TestReduceGradingStatus(t *testing.T) {
	t.Parallel()

	s := func(vals ...mmodel.GradingStatus) []mmodel.GradingStatus { return vals }

	tests := []struct {
		name     string
		statuses []mmodel.GradingStatus
		want     string
	}{
		{"empty yields none", nil, ""},
		{"any correction_necessary wins", s(1, 2, 1), "correction_necessary"},
		{"correction beats improvement", s(3, 2), "correction_necessary"},
		{"any improvement_possible second", s(1, 3, 1), "improvement_possible"},
		{"all corrected", s(1, 1, 1), "corrected"},
		{"mix of corrected and not_reviewed", s(1, 0), "not_reviewed"},
		{"all not_reviewed", s(0, 0), "not_reviewed"},
		{"single corrected", s(1), "corrected"},
		{"single not_reviewed", s(0), "not_reviewed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ReduceGradingStatus(tt.statuses))
		})
	}
}

// Every non-empty multiset over {0,1,2,3} must reduce to exactly one of the
// four wire values, obeying the priority order.
func TestReduceGradingStatusTotality(t *testing.T) {
	t.Parallel()

	valid := map[string]bool{
		"not_reviewed":         true,
		"corrected":            true,
		"correction_necessary": true,
		"improvement_possible": true,
	}

	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			for c := 0; c < 4; c++ {
				statuses := []mmodel.GradingStatus{
					mmodel.GradingStatus(a), mmodel.GradingStatus(b), mmodel.GradingStatus(c),
				}

				got := ReduceGradingStatus(statuses)
				require.Truef(t, valid[got], "reduction of %v yielded %q", statuses, got)

				hasCorrection := a == 2 || b == 2 || c == 2
				hasImprovement := a == 3 || b == 3 || c == 3
				allCorrected := a == 1 && b == 1 && c == 1

				switch {
				case hasCorrection:
					assert.Equal(t, "correction_necessary", got)
				case hasImprovement:
					assert.Equal(t, "improvement_possible", got)
				case allCorrected:
					assert.Equal(t, "corrected", got)
				default:
					assert.Equal(t, "not_reviewed", got)
				}
			}
		}
	}
}

func submittableFixture() []SubmittableContent {
	ct := func(id, path string) SubmittableContent {
		return SubmittableContent{
			CourseContentID:  id,
			Path:             ltree.MustParse(path),
			ContentTypeID:    "ct-mandatory",
			ContentTypeSlug:  "mandatory",
			ContentTypeTitle: "Mandatory",
			ContentTypeColor: "#336699",
		}
	}

	return []SubmittableContent{
		ct("cc-w1a", "w1.a"),
		ct("cc-w1b", "w1.b"),
		ct("cc-w2a", "w2.a"),
		ct("cc-w2b", "w2.b"),
	}
}

// The tree-path rollup scenario: four submittables w1.a, w1.b, w2.a, w2.b;
// only w1.a is submitted with grade 1.0, status corrected.
func TestCalculateGradingStatsTreePath(t *testing.T) {
	t.Parallel()

	submittedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	corrected := mmodel.GradingStatusCorrected

	submitted := []SubmittedContent{
		{CourseContentID: "cc-w1a", CourseMemberID: "m1", LatestSubmissionAt: &submittedAt},
	}

	graded := []GradedContent{
		{CourseContentID: "cc-w1a", Grade: 1.0, Status: &corrected},
	}

	nodes, byContentType, latest := CalculateGradingStats(submittableFixture(), submitted, graded, map[string]string{"w1": "Week 1"}, 0)

	byPath := map[string]mmodel.GradingNode{}
	for _, n := range nodes {
		byPath[n.Path] = n
	}

	w1 := byPath["w1"]
	assert.Equal(t, 2, w1.MaxAssignments)
	assert.Equal(t, 1, w1.SubmittedAssignments)
	assert.InDelta(t, 50.0, w1.ProgressPercentage, 0.001)
	// w1.b has no grade, so it reduces as not_reviewed.
	assert.Equal(t, "not_reviewed", w1.GradingStatus)
	assert.InDelta(t, 0.5, w1.AverageGrading, 0.001)
	assert.Equal(t, "Week 1", w1.Title)
	require.NotNil(t, w1.LatestSubmissionAt)
	assert.True(t, w1.LatestSubmissionAt.Equal(submittedAt))

	w2 := byPath["w2"]
	assert.Equal(t, 2, w2.MaxAssignments)
	assert.Equal(t, 0, w2.SubmittedAssignments)
	assert.Equal(t, "not_reviewed", w2.GradingStatus)
	assert.Nil(t, w2.LatestSubmissionAt)

	w1a := byPath["w1.a"]
	assert.Equal(t, 1, w1a.MaxAssignments)
	assert.Equal(t, 1, w1a.SubmittedAssignments)
	assert.Equal(t, "corrected", w1a.GradingStatus)
	assert.InDelta(t, 1.0, w1a.AverageGrading, 0.001)

	// Course totals: max=4, submitted=1.
	require.Len(t, byContentType, 1)
	assert.Equal(t, 4, byContentType[0].MaxAssignments)
	assert.Equal(t, 1, byContentType[0].SubmittedAssignments)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(submittedAt))
}

// Identical input rows must yield byte-identical aggregator output.
func TestCalculateGradingStatsDeterminism(t *testing.T) {
	t.Parallel()

	submittedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	submitted := []SubmittedContent{
		{CourseContentID: "cc-w1a", LatestSubmissionAt: &submittedAt},
		{CourseContentID: "cc-w2b", LatestSubmissionAt: &submittedAt},
	}

	run := func() []byte {
		nodes, byType, _ := CalculateGradingStats(submittableFixture(), submitted, nil, nil, 0)

		raw, err := json.Marshal(map[string]any{"nodes": nodes, "byType": byType})
		require.NoError(t, err)

		return raw
	}

	first := run()

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestCalculateGradingStatsDepthLimit(t *testing.T) {
	t.Parallel()

	nodes, _, _ := CalculateGradingStats(submittableFixture(), nil, nil, nil, 1)

	for _, n := range nodes {
		assert.LessOrEqual(t, len(n.Path), 2, "depth 1 must only yield single-label prefixes")
	}
}

func TestAggregateUnitStatuses(t *testing.T) {
	t.Parallel()

	unit := &mmodel.CourseContentView{ID: "u1", Path: ltree.MustParse("w1")}
	child1 := &mmodel.CourseContentView{
		ID: "c1", Path: ltree.MustParse("w1.a"),
		SubmissionGroup: &mmodel.SubmissionGroupView{ID: "g1"},
		Status:          "corrected", UnreviewedCount: 0,
	}
	child2 := &mmodel.CourseContentView{
		ID: "c2", Path: ltree.MustParse("w1.b"),
		SubmissionGroup: &mmodel.SubmissionGroupView{ID: "g2"},
		Status:          "correction_necessary", UnreviewedCount: 2,
	}

	contents := AggregateUnitStatuses([]*mmodel.CourseContentView{unit, child1, child2}, nil)

	assert.Equal(t, "correction_necessary", contents[0].Status)
	assert.Equal(t, 2, contents[0].UnreviewedCount)
}

func TestAggregateUnitStatusesFallback(t *testing.T) {
	t.Parallel()

	// The unit's descendants were filtered out of the result, so the
	// course-scoped fallback resolves it.
	unit := &mmodel.CourseContentView{ID: "u1", Path: ltree.MustParse("w1")}

	var fallbackCalled bool

	AggregateUnitStatuses([]*mmodel.CourseContentView{unit}, func(u *mmodel.CourseContentView) (string, int) {
		fallbackCalled = true
		return "corrected", 1
	})

	assert.True(t, fallbackCalled)
	assert.Equal(t, "corrected", unit.Status)
	assert.Equal(t, 1, unit.UnreviewedCount)
}

func TestCalculateGradingStatsForAllMembers(t *testing.T) {
	t.Parallel()

	submittedAt := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	members := []MemberInfo{
		{CourseMemberID: "m1", UserID: "u1", Username: "alice"},
		{CourseMemberID: "m2", UserID: "u2", Username: "bob"},
	}

	allSubmitted := []SubmittedContent{
		{CourseContentID: "cc-w1a", CourseMemberID: "m1", LatestSubmissionAt: &submittedAt},
		{CourseContentID: "cc-w1b", CourseMemberID: "m1", LatestSubmissionAt: &submittedAt},
	}

	rows := CalculateGradingStatsForAllMembers("course-1", submittableFixture(), allSubmitted, members)

	require.Len(t, rows, 2)

	assert.Equal(t, "m1", rows[0].CourseMemberID)
	assert.Equal(t, 4, rows[0].TotalMaxAssignments)
	assert.Equal(t, 2, rows[0].TotalSubmittedAssignments)
	assert.InDelta(t, 50.0, rows[0].OverallProgressPercentage, 0.001)

	// Missing contents for a member contribute zero submissions.
	assert.Equal(t, "m2", rows[1].CourseMemberID)
	assert.Equal(t, 4, rows[1].TotalMaxAssignments)
	assert.Equal(t, 0, rows[1].TotalSubmittedAssignments)
	assert.Zero(t, rows[1].OverallProgressPercentage)
	assert.Nil(t, rows[1].LatestSubmissionAt)
}
