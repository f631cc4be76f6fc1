package views

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mlog"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mredis"
)

func newViewTestCache(t *testing.T) *mcache.Cache {
	t.Helper()

	mr := miniredis.RunT(t)

	conn := &mredis.RedisConnection{
		Client:    redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Connected: true,
		Logger:    &mlog.NoneLogger{},
	}

	return mcache.New(conn, "test", 10*time.Minute)
}

func strPtr(s string) *string { return &s }

func TestQueryViewTypeSharesIdenticalFilters(t *testing.T) {
	t.Parallel()

	a := mmodel.CourseContentQuery{CourseID: strPtr("123"), Limit: intPtr(10)}
	b := mmodel.CourseContentQuery{Limit: intPtr(10), CourseID: strPtr("123")}

	assert.Equal(t, queryViewType("course_contents", a.Params()), queryViewType("course_contents", b.Params()))

	c := mmodel.CourseContentQuery{CourseID: strPtr("456"), Limit: intPtr(10)}
	assert.NotEqual(t, queryViewType("course_contents", a.Params()), queryViewType("course_contents", c.Params()))
}

func intPtr(n int) *int { return &n }

func TestQueryViewTypeIgnoresUnsetFilters(t *testing.T) {
	t.Parallel()

	withNil := mmodel.CourseContentQuery{CourseID: strPtr("123")}
	bare := map[string]any{"course_id": "123"}

	assert.Equal(t, queryViewType("course_contents", withNil.Params()), queryViewType("course_contents", bare))
	assert.Equal(t, "course_contents:default", queryViewType("course_contents", map[string]any{}))
}

func TestExtractRelatedIDs(t *testing.T) {
	t.Parallel()

	related := extractRelatedIDs(map[string]any{
		"course_id":              "123",
		"course_content_type_id": "456",
		"limit":                  10,
		"path":                   "w1",
	})

	assert.Equal(t, map[string]string{
		"course_id":              "123",
		"course_content_type_id": "456",
	}, related)
}

// A cache hit must complete without consulting the connection resolver.
func TestStudentGetCourseContentCacheHitAcquiresNoConnection(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := NewMockConnectionResolver(ctrl)
	// No EXPECT: any GetDB call fails the test.

	cache := newViewTestCache(t)
	ctx := context.Background()

	cached := &mmodel.CourseContentView{
		ID:       "cc1",
		CourseID: "course-9",
		Title:    "Hello World",
		Path:     ltree.MustParse("w1.a"),
		Status:   "corrected",
	}

	cache.SetUserView(ctx, "u1", "course_content", cached, "cc1", 0, nil)

	repo := NewStudentViewRepository(cache, resolver)

	got, err := repo.GetCourseContent(ctx, "u1", "cc1")
	require.NoError(t, err)
	assert.Equal(t, "cc1", got.ID)
	assert.Equal(t, "corrected", got.Status)
	assert.Equal(t, "w1.a", got.Path.String())
}

func TestGradingsGetCacheHitAcquiresNoConnection(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := NewMockConnectionResolver(ctrl)

	cache := newViewTestCache(t)
	ctx := context.Background()

	query := mmodel.GradingsQuery{}
	viewType := "cm_grading:m1:" + paramsHashForTest(query)

	cached := &mmodel.CourseMemberGradings{
		CourseMemberID:      "m1",
		CourseID:            "course-9",
		TotalMaxAssignments: 4,
	}

	cache.SetUserView(ctx, "u1", viewType, cached, "", 0, nil)

	repo := NewGradingsViewRepository(cache, resolver)

	got, err := repo.Get(ctx, "u1", "m1", query)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalMaxAssignments)
}

func paramsHashForTest(q mmodel.GradingsQuery) string {
	// queryViewType prefixes with "x:", strip it back off.
	full := queryViewType("x", q.Params())
	return full[2:]
}

// After invalidating the projection's tag, the view must miss and go back to
// the resolver.
func TestStudentViewMissAfterInvalidation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	resolver := NewMockConnectionResolver(ctrl)
	resolver.EXPECT().GetDB().Return(nil, assertableError{}).Times(1)

	cache := newViewTestCache(t)
	ctx := context.Background()

	cached := &mmodel.CourseContentView{ID: "cc1", CourseID: "course-9"}
	cache.SetUserView(ctx, "u1", "course_content", cached, "cc1", 0, map[string]string{"student_view": "course-9"})

	cache.InvalidateTags(ctx, "student_view:course-9")

	repo := NewStudentViewRepository(cache, resolver)

	_, err := repo.GetCourseContent(ctx, "u1", "cc1")
	require.Error(t, err)
}

type assertableError struct{}

func (assertableError) Error() string { return "no database in this test" }
