package coursemember

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/computor-org/computor/pkg/mmodel"
)

// Membership writes must cover every per-course view bucket plus the member's
// own user scope, so no projection over the member can go stale.
func TestEntityTagsCoverViewBuckets(t *testing.T) {
	t.Parallel()

	r := &CourseMemberPostgreSQLRepository{}

	member := &mmodel.CourseMember{
		ID:           "m1",
		CourseID:     "c1",
		UserID:       "u1",
		CourseRoleID: "_student",
	}

	tags := r.EntityTags(context.Background(), member)

	for _, want := range []string{
		"course_member:m1",
		"course_member:list",
		"cm_grading:m1",
		"course:c1",
		"course_id:c1",
		"student_view:c1",
		"tutor_view:c1",
		"lecturer_view:c1",
		"course_member:user:u1",
		"user:u1",
		"course_member:role:_student",
	} {
		assert.Contains(t, tags, want)
	}
}

func TestListTags(t *testing.T) {
	t.Parallel()

	r := &CourseMemberPostgreSQLRepository{}

	tags := r.ListTags(map[string]any{"course_id": "c1", "user_id": "u1"})

	assert.ElementsMatch(t, []string{
		"course_member:list",
		"course_member:course:c1",
		"course:c1",
		"course_member:user:u1",
		"user:u1",
	}, tags)
}

type recordingInvalidator struct {
	userIDs []string
}

func (r *recordingInvalidator) InvalidateUserCourseMemberships(_ context.Context, userID string) {
	r.userIDs = append(r.userIDs, userID)
}

func TestPermissionInvalidatorReceivesUser(t *testing.T) {
	t.Parallel()

	recorder := &recordingInvalidator{}
	r := &CourseMemberPostgreSQLRepository{permissions: recorder}

	r.invalidatePermissions(context.Background(), &mmodel.CourseMember{ID: "m1", UserID: "u7"})

	assert.Equal(t, []string{"u7"}, recorder.userIDs)
}
