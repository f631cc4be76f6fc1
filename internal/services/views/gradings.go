package views

import (
	"context"
	"database/sql"
	"reflect"
	"strconv"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/constant"
	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mopentelemetry"
)

// GradingsViewRepository serves the per-member grading dashboards:
// hierarchical tree-path rollups for one member, and the batched course-wide
// listing over every enrolled student.
type GradingsViewRepository struct {
	View
}

// NewGradingsViewRepository returns a GradingsViewRepository with the
// dashboard TTL (30 minutes).
func NewGradingsViewRepository(cache *mcache.Cache, resolver ConnectionResolver) *GradingsViewRepository {
	return &GradingsViewRepository{View: NewView(cache, resolver, 1800*time.Second)}
}

// Get returns the full-hierarchy grading stats of one course member. The
// projection is keyed and tagged cm_grading:{member_id} so every grade or
// artifact write on the member's groups purges it.
func (v *GradingsViewRepository) Get(ctx context.Context, userID, courseMemberID string, query mmodel.GradingsQuery) (*mmodel.CourseMemberGradings, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.gradings.get")
	defer span.End()

	viewType := "cm_grading:" + courseMemberID + ":" + pkg.ParamsHash(query.Params())

	var cached mmodel.CourseMemberGradings
	if v.getCachedView(ctx, userID, viewType, "", &cached) {
		return &cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	courseID, err := v.courseIDForMember(ctx, db, courseMemberID)
	if err != nil {
		return nil, err
	}

	if query.CourseID != nil && *query.CourseID != courseID {
		return nil, pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseMemberGradings{}).Name())
	}

	submittable, err := querySubmittableContents(ctx, db, courseID, query)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query submittable contents", err)

		return nil, err
	}

	submitted, err := querySubmittedContents(ctx, db, courseID, courseMemberID, query)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query submitted contents", err)

		return nil, err
	}

	graded, err := queryGradedContents(ctx, db, courseID, courseMemberID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query graded contents", err)

		return nil, err
	}

	pathTitles, err := queryPathTitles(ctx, db, courseID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query path titles", err)

		return nil, err
	}

	depth := 0
	if query.Depth != nil {
		depth = *query.Depth
	}

	nodes, byContentType, overallLatest := CalculateGradingStats(submittable, submitted, graded, pathTitles, depth)

	result := &mmodel.CourseMemberGradings{
		CourseMemberID:      courseMemberID,
		CourseID:            courseID,
		TotalMaxAssignments: len(submittable),
		LatestSubmissionAt:  overallLatest,
		ByContentType:       byContentType,
		Nodes:               nodes,
	}

	submittableIDs := make(map[string]struct{}, len(submittable))
	for _, c := range submittable {
		submittableIDs[c.CourseContentID] = struct{}{}
	}

	for _, s := range submitted {
		if _, ok := submittableIDs[s.CourseContentID]; ok {
			result.TotalSubmittedAssignments++
		}
	}

	if result.TotalMaxAssignments > 0 {
		result.OverallProgressPercentage = float64(result.TotalSubmittedAssignments) / float64(result.TotalMaxAssignments) * 100
	}

	relatedIDs := map[string]string{
		"cm_grading":       courseMemberID,
		"course_member_id": courseMemberID,
		"course_id":        courseID,
	}

	v.setCachedView(ctx, userID, viewType, "", result, relatedIDs)

	return result, nil
}

// List batches the course-level grading stats for every enrolled student of
// a course in one SQL aggregation.
func (v *GradingsViewRepository) List(ctx context.Context, userID, courseID string, query mmodel.GradingsQuery) ([]mmodel.CourseMemberGradingsRow, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.gradings.list")
	defer span.End()

	params := query.Params()
	params["course_id"] = courseID

	var cached []mmodel.CourseMemberGradingsRow
	if v.getCachedQueryView(ctx, userID, "cm_gradings", params, &cached) {
		return cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	members, err := queryStudentMembers(ctx, db, courseID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query course members", err)

		return nil, err
	}

	if len(members) == 0 {
		return nil, nil
	}

	submittable, err := querySubmittableContents(ctx, db, courseID, query)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query submittable contents", err)

		return nil, err
	}

	allSubmitted, err := queryAllSubmittedContents(ctx, db, courseID, query)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query submitted contents", err)

		return nil, err
	}

	rows := CalculateGradingStatsForAllMembers(courseID, submittable, allSubmitted, members)

	extra := map[string]string{"lecturer_view": courseID}

	for _, member := range members {
		extra["cm_grading:"+member.CourseMemberID] = ""
	}

	v.setCachedQueryView(ctx, userID, "cm_gradings", params, rows, extra)

	return rows, nil
}

func (v *GradingsViewRepository) courseIDForMember(ctx context.Context, db dbresolver.DB, courseMemberID string) (string, error) {
	var courseID string

	row := db.QueryRowContext(ctx, `SELECT course_id FROM course_member WHERE id = $1 AND deleted_at IS NULL`, courseMemberID)
	if err := row.Scan(&courseID); err != nil {
		if err == sql.ErrNoRows {
			return "", pkg.ValidateBusinessError(constant.ErrEntityNotFound, reflect.TypeOf(mmodel.CourseMember{}).Name())
		}

		return "", err
	}

	return courseID, nil
}

func gradingsFilterClauses(query mmodel.GradingsQuery, args []any) (string, []any) {
	clause := ""

	if query.PathPrefix != nil && *query.PathPrefix != "" {
		args = append(args, *query.PathPrefix)
		clause += ` AND cc.path <@ $` + strconv.Itoa(len(args)) + `::ltree`
	}

	if query.CourseContentTypeID != nil && *query.CourseContentTypeID != "" {
		args = append(args, *query.CourseContentTypeID)
		clause += ` AND cc.course_content_type_id = $` + strconv.Itoa(len(args))
	}

	return clause, args
}

func querySubmittableContents(ctx context.Context, db dbresolver.DB, courseID string, query mmodel.GradingsQuery) ([]SubmittableContent, error) {
	args := []any{courseID}
	clause, args := gradingsFilterClauses(query, args)

	rows, err := db.QueryContext(ctx, `SELECT cc.id, cc.path, cct.id, cct.slug, cct.title, cct.color
		FROM course_content cc
		JOIN course_content_type cct ON cct.id = cc.course_content_type_id
		JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
		WHERE cc.course_id = $1 AND cck.submittable = true AND cc.archived_at IS NULL`+clause+`
		ORDER BY cc.path`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []SubmittableContent

	for rows.Next() {
		var c SubmittableContent
		if err := rows.Scan(&c.CourseContentID, &c.Path, &c.ContentTypeID, &c.ContentTypeSlug,
			&c.ContentTypeTitle, &c.ContentTypeColor); err != nil {
			return nil, err
		}

		contents = append(contents, c)
	}

	return contents, rows.Err()
}

func querySubmittedContents(ctx context.Context, db dbresolver.DB, courseID, courseMemberID string, query mmodel.GradingsQuery) ([]SubmittedContent, error) {
	args := []any{courseID, courseMemberID}
	clause, args := gradingsFilterClauses(query, args)

	rows, err := db.QueryContext(ctx, `SELECT cc.id, MAX(sa.created_at)
		FROM submission_artifact sa
		JOIN submission_group sg ON sg.id = sa.submission_group_id
		JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
		JOIN course_content cc ON cc.id = sg.course_content_id
		JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
		WHERE cc.course_id = $1 AND sgm.course_member_id = $2 AND sa.submit = true
		  AND cck.submittable = true AND cc.archived_at IS NULL`+clause+`
		GROUP BY cc.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []SubmittedContent

	for rows.Next() {
		var (
			c      SubmittedContent
			latest sql.NullTime
		)

		if err := rows.Scan(&c.CourseContentID, &latest); err != nil {
			return nil, err
		}

		c.CourseMemberID = courseMemberID

		if latest.Valid {
			t := latest.Time
			c.LatestSubmissionAt = &t
		}

		contents = append(contents, c)
	}

	return contents, rows.Err()
}

// queryGradedContents fetches the latest grade per submittable content for a
// member via a LATERAL latest-grade lookup. Grades can land on any artifact,
// not just submitted ones.
func queryGradedContents(ctx context.Context, db dbresolver.DB, courseID, courseMemberID string) ([]GradedContent, error) {
	rows, err := db.QueryContext(ctx, `SELECT cc.id, COALESCE(lg.grade, 0), lg.status
		FROM course_content cc
		JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
		LEFT JOIN LATERAL (
		    SELECT g.grade, g.status
		    FROM submission_grade g
		    JOIN submission_artifact sa ON sa.id = g.artifact_id
		    JOIN submission_group sg ON sg.id = sa.submission_group_id
		    JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
		    WHERE sg.course_content_id = cc.id AND sgm.course_member_id = $2
		    ORDER BY g.graded_at DESC
		    LIMIT 1
		) lg ON true
		WHERE cc.course_id = $1 AND cck.submittable = true AND cc.archived_at IS NULL`,
		courseID, courseMemberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []GradedContent

	for rows.Next() {
		var (
			c      GradedContent
			status sql.NullInt64
		)

		if err := rows.Scan(&c.CourseContentID, &c.Grade, &status); err != nil {
			return nil, err
		}

		if status.Valid {
			s := mmodel.GradingStatus(status.Int64)
			c.Status = &s
		}

		contents = append(contents, c)
	}

	return contents, rows.Err()
}

func queryPathTitles(ctx context.Context, db dbresolver.DB, courseID string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT cc.path, cc.title FROM course_content cc WHERE cc.course_id = $1 AND cc.archived_at IS NULL`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := map[string]string{}

	for rows.Next() {
		var (
			path  ltree.Path
			title string
		)

		if err := rows.Scan(&path, &title); err != nil {
			return nil, err
		}

		titles[path.String()] = title
	}

	return titles, rows.Err()
}

func queryStudentMembers(ctx context.Context, db dbresolver.DB, courseID string) ([]MemberInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT cm.id, u.id, u.username, u.given_name, u.family_name
		FROM course_member cm
		JOIN "user" u ON u.id = cm.user_id
		WHERE cm.course_id = $1 AND cm.course_role_id = '_student' AND cm.deleted_at IS NULL
		ORDER BY u.family_name, u.given_name`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []MemberInfo

	for rows.Next() {
		var m MemberInfo
		if err := rows.Scan(&m.CourseMemberID, &m.UserID, &m.Username, &m.GivenName, &m.FamilyName); err != nil {
			return nil, err
		}

		members = append(members, m)
	}

	return members, rows.Err()
}

// queryAllSubmittedContents fetches every (member, content) submission of the
// course in one aggregation, feeding the batch calculation.
func queryAllSubmittedContents(ctx context.Context, db dbresolver.DB, courseID string, query mmodel.GradingsQuery) ([]SubmittedContent, error) {
	args := []any{courseID}
	clause, args := gradingsFilterClauses(query, args)

	rows, err := db.QueryContext(ctx, `SELECT sgm.course_member_id, cc.id, MAX(sa.created_at)
		FROM submission_artifact sa
		JOIN submission_group sg ON sg.id = sa.submission_group_id
		JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
		JOIN course_content cc ON cc.id = sg.course_content_id
		JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
		WHERE cc.course_id = $1 AND sa.submit = true AND cck.submittable = true AND cc.archived_at IS NULL`+clause+`
		GROUP BY sgm.course_member_id, cc.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []SubmittedContent

	for rows.Next() {
		var (
			c      SubmittedContent
			latest sql.NullTime
		)

		if err := rows.Scan(&c.CourseMemberID, &c.CourseContentID, &latest); err != nil {
			return nil, err
		}

		if latest.Valid {
			t := latest.Time
			c.LatestSubmissionAt = &t
		}

		contents = append(contents, c)
	}

	return contents, rows.Err()
}
