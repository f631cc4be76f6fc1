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

// TutorViewRepository mirrors the student projections over a given course
// member, so graders can inspect a student's progress. Unread counters bind
// to the reading tutor, not the student. Permission gating happens in the
// caller before the lookup.
type TutorViewRepository struct {
	View
}

// NewTutorViewRepository returns a TutorViewRepository with the tutor TTL
// (3 minutes, fresher for grading).
func NewTutorViewRepository(cache *mcache.Cache, resolver ConnectionResolver) *TutorViewRepository {
	return &TutorViewRepository{View: NewView(cache, resolver, 180*time.Second)}
}

// GetCourseContent returns the per-member content projection, with unread
// counts computed for readerUserID.
func (v *TutorViewRepository) GetCourseContent(ctx context.Context, readerUserID, courseMemberID, courseContentID string) (*mmodel.CourseContentView, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.tutor.get_course_content")
	defer span.End()

	viewID := courseMemberID + ":" + courseContentID

	var cached mmodel.CourseContentView
	if v.getCachedView(ctx, readerUserID, "tutor_course_content", viewID, &cached) {
		return &cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	contents, err := queryMemberContents(ctx, db, courseMemberID, readerUserID, courseContentID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query course content", err)

		return nil, err
	}

	if len(contents) == 0 {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseContentView{}).Name())
	}

	result := contents[0]

	relatedIDs := map[string]string{
		"course_content_id": courseContentID,
		"course_content":    courseContentID,
		"course_member_id":  courseMemberID,
		"course_member":     courseMemberID,
		"tutor_view":        result.CourseID,
	}

	v.setCachedView(ctx, readerUserID, "tutor_course_content", viewID, result, relatedIDs)

	return result, nil
}

// ListCourseContents returns the content-list projection over a course
// member for the reading tutor.
func (v *TutorViewRepository) ListCourseContents(ctx context.Context, readerUserID, courseMemberID string, query mmodel.CourseContentQuery) ([]*mmodel.CourseContentView, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.tutor.list_course_contents")
	defer span.End()

	params := query.Params()
	params["course_member_id"] = courseMemberID

	var cached []*mmodel.CourseContentView
	if v.getCachedQueryView(ctx, readerUserID, "tutor_course_contents", params, &cached) {
		return cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	contents, err := queryMemberContents(ctx, db, courseMemberID, readerUserID, "")
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query course contents", err)

		return nil, err
	}

	contents = filterContents(contents, query)

	contents = AggregateUnitStatuses(contents, nil)

	extra := map[string]string{
		"cm_grading": courseMemberID,
	}

	for _, cc := range contents {
		if cc.CourseID != "" {
			extra["tutor_view"] = cc.CourseID
			break
		}
	}

	for _, cc := range contents {
		extra["course_content:"+cc.ID] = ""
	}

	v.setCachedQueryView(ctx, readerUserID, "tutor_course_contents", params, contents, extra)

	return contents, nil
}
