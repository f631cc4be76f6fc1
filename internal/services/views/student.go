package views

import (
	"context"
	"reflect"
	"time"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/constant"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mopentelemetry"
)

// StudentViewRepository serves the student-facing aggregated projections:
// course contents with submission state, latest result and unread counters,
// and the student's course list.
type StudentViewRepository struct {
	View
}

// NewStudentViewRepository returns a StudentViewRepository with the student
// TTL (5 minutes).
func NewStudentViewRepository(cache *mcache.Cache, resolver ConnectionResolver) *StudentViewRepository {
	return &StudentViewRepository{View: NewView(cache, resolver, 300*time.Second)}
}

// GetCourseContent returns the detailed content projection for one student
// and one content. A cache hit acquires no DB connection.
func (v *StudentViewRepository) GetCourseContent(ctx context.Context, userID, courseContentID string) (*mmodel.CourseContentView, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.student.get_course_content")
	defer span.End()

	var cached mmodel.CourseContentView
	if v.getCachedView(ctx, userID, "course_content", courseContentID, &cached) {
		return &cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	contents, err := queryUserContents(ctx, db, userID, "", courseContentID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query course content", err)

		return nil, err
	}

	if len(contents) == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContentView{}).Name())
	}

	result := contents[0]

	// Units need their descendants, which this single-content query does not
	// return: back-fill from one course-scoped query.
	if result.SubmissionGroup == nil {
		result.Status, result.UnreviewedCount = v.unitStatusFromCourse(ctx, userID, result)
	}

	relatedIDs := map[string]string{
		"course_content_id": courseContentID,
		"course_content":    courseContentID,
		"student_view":      result.CourseID,
	}

	v.setCachedView(ctx, userID, "course_content", courseContentID, result, relatedIDs)

	return result, nil
}

// unitStatusFromCourse fetches the user's submittable contents of the unit's
// course and reduces the unit status locally.
func (v *StudentViewRepository) unitStatusFromCourse(ctx context.Context, userID string, unit *mmodel.CourseContentView) (string, int) {
	db, err := v.db(ctx)
	if err != nil {
		return "", 0
	}

	contents, err := queryUserContents(ctx, db, userID, unit.CourseID, "")
	if err != nil {
		pkg.NewLoggerFromContext(ctx).Warnf("unit status back-fill failed for %s: %v", unit.ID, err)
		return "", 0
	}

	var (
		statuses   []mmodel.GradingStatus
		unreviewed int
	)

	for _, cc := range contents {
		if cc.ID == unit.ID || !cc.Path.IsStrictDescendantOf(unit.Path) {
			continue
		}

		if cc.SubmissionGroup == nil {
			continue
		}

		statuses = append(statuses, mmodel.ParseGradingStatus(cc.Status))
		unreviewed += cc.UnreviewedCount
	}

	return ReduceGradingStatus(statuses), unreviewed
}

// ListCourseContents returns the content-list projection for a student under
// the given filters. Identical semantic filters share one cache entry.
func (v *StudentViewRepository) ListCourseContents(ctx context.Context, userID string, query mmodel.CourseContentQuery) ([]*mmodel.CourseContentView, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.student.list_course_contents")
	defer span.End()

	params := query.Params()

	var cached []*mmodel.CourseContentView
	if v.getCachedQueryView(ctx, userID, "course_contents", params, &cached) {
		return cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	courseID := ""
	if query.CourseID != nil {
		courseID = *query.CourseID
	}

	contents, err := queryUserContents(ctx, db, userID, courseID, "")
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query course contents", err)

		return nil, err
	}

	contents = filterContents(contents, query)

	contents = AggregateUnitStatuses(contents, func(unit *mmodel.CourseContentView) (string, int) {
		return v.unitStatusFromCourse(ctx, userID, unit)
	})

	// Pin the projection to its course bucket and to every returned content
	// so deployment-driven invalidation reaches it.
	extra := map[string]string{}
	if courseID != "" {
		extra["student_view"] = courseID
	}

	for _, cc := range contents {
		extra["course_content:"+cc.ID] = ""
	}

	v.setCachedQueryView(ctx, userID, "course_contents", params, contents, extra)

	return contents, nil
}

// filterContents applies the non-course query filters locally: path subtree,
// content type, pagination.
func filterContents(contents []*mmodel.CourseContentView, query mmodel.CourseContentQuery) []*mmodel.CourseContentView {
	out := contents

	if query.CourseContentTypeID != nil || query.Path != nil {
		out = out[:0:0]

		for _, cc := range contents {
			if query.CourseContentTypeID != nil && cc.CourseContentTypeID != *query.CourseContentTypeID {
				continue
			}

			if query.Path != nil && cc.Path.String() != *query.Path {
				continue
			}

			out = append(out, cc)
		}
	}

	if query.Skip != nil && *query.Skip > 0 {
		if *query.Skip >= len(out) {
			return nil
		}

		out = out[*query.Skip:]
	}

	if query.Limit != nil && *query.Limit > 0 && *query.Limit < len(out) {
		out = out[:*query.Limit]
	}

	return out
}

// ListCourses returns the student's enrolled course projections.
func (v *StudentViewRepository) ListCourses(ctx context.Context, userID string, query mmodel.CourseQuery) ([]*mmodel.CourseView, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.student.list_courses")
	defer span.End()

	params := query.Params()

	var cached []*mmodel.CourseView
	if v.getCachedQueryView(ctx, userID, "courses", params, &cached) {
		return cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	courses, err := queryUserCourses(ctx, db, userID, query)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query courses", err)

		return nil, err
	}

	v.setCachedQueryView(ctx, userID, "courses", params, courses, nil)

	return courses, nil
}

// GetCourse returns the detailed course projection for a student.
func (v *StudentViewRepository) GetCourse(ctx context.Context, userID, courseID string) (*mmodel.CourseView, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.student.get_course")
	defer span.End()

	var cached mmodel.CourseView
	if v.getCachedView(ctx, userID, "course", courseID, &cached) {
		return &cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	courses, err := queryUserCourses(ctx, db, userID, mmodel.CourseQuery{})
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query course", err)

		return nil, err
	}

	var result *mmodel.CourseView

	for _, c := range courses {
		if c.ID == courseID {
			result = c
			break
		}
	}

	if result == nil {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseView{}).Name())
	}

	relatedIDs := map[string]string{
		"course_id":        courseID,
		"course_family_id": result.CourseFamilyID,
		"organization_id":  result.OrganizationID,
	}

	v.setCachedView(ctx, userID, "course", courseID, result, relatedIDs)

	return result, nil
}
