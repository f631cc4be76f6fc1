package views

import (
	"context"
	"database/sql"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
	"github.com/computor-org/computor/pkg/mpostgres"
)

// The composite content query joins, per §course content:
//   - the spine (course_content × course_content_kind),
//   - the caller's submission group (whitelisted so unrelated users' groups
//     never join),
//   - the latest test result and the total result count,
//   - the official submission count (submit = true only),
//   - the latest grade on the latest submitted artifact, ranked by a
//     ROW_NUMBER window over graded_at,
//   - the unread message counters per content and per group, excluding the
//     reader's own messages and anti-joined against message_read,
//   - the deployment status.
//
// Everything outside the spine is LEFT-joined with COALESCE zeros so a
// content without submissions still appears, and the aggregates live in CTEs
// so relationship row-multiplication cannot inflate the counters.

const userContentCTEs = `
WITH caller_groups AS (
    SELECT sg.id
    FROM submission_group sg
    JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
    JOIN course_member cm ON cm.id = sgm.course_member_id
    WHERE cm.user_id = $1
),
latest_result AS (
    SELECT r.course_content_id, MAX(r.created_at) AS latest_result_date
    FROM result r
    WHERE r.submission_group_id IN (SELECT id FROM caller_groups)
      AND r.status = 0 AND r.test_system_id IS NOT NULL
    GROUP BY r.course_content_id
),
results_count AS (
    SELECT r.course_content_id, COUNT(r.id) AS total_results_count
    FROM result r
    WHERE r.submission_group_id IN (SELECT id FROM caller_groups)
      AND r.status = 0 AND r.test_system_id IS NOT NULL
    GROUP BY r.course_content_id
),
submission_count AS (
    SELECT sg.course_content_id, COUNT(sa.id) AS submission_count
    FROM submission_artifact sa
    JOIN submission_group sg ON sg.id = sa.submission_group_id
    WHERE sa.submit = true AND sg.id IN (SELECT id FROM caller_groups)
    GROUP BY sg.course_content_id
),
latest_artifact AS (
    SELECT sa.submission_group_id, MAX(sa.created_at) AS latest_artifact_created_at
    FROM submission_artifact sa
    WHERE sa.submit = true
    GROUP BY sa.submission_group_id
),
ranked_grades AS (
    SELECT sa.submission_group_id, g.status, g.grade,
           ROW_NUMBER() OVER (PARTITION BY sa.submission_group_id ORDER BY g.graded_at DESC) AS rn
    FROM submission_artifact sa
    JOIN latest_artifact la
      ON la.submission_group_id = sa.submission_group_id
     AND sa.created_at = la.latest_artifact_created_at
    JOIN submission_grade g ON g.artifact_id = sa.id
    WHERE sa.submit = true
),
submission_status AS (
    SELECT la.submission_group_id,
           rg.status AS latest_grade_status,
           rg.grade AS latest_grade,
           CASE
               WHEN rg.status IS NULL THEN 1
               WHEN rg.status = 0 THEN 1
               ELSE 0
           END AS is_unreviewed
    FROM latest_artifact la
    LEFT JOIN ranked_grades rg
      ON rg.submission_group_id = la.submission_group_id AND rg.rn = 1
),
content_unread AS (
    SELECT m.course_content_id, COUNT(m.id) AS unread_count
    FROM message m
    LEFT JOIN message_read mr ON mr.message_id = m.id AND mr.reader_user_id = $2
    WHERE m.archived_at IS NULL
      AND m.course_content_id IS NOT NULL
      AND m.submission_group_id IS NULL
      AND m.author_id != $2
      AND mr.id IS NULL
    GROUP BY m.course_content_id
),
group_unread AS (
    SELECT m.submission_group_id, COUNT(m.id) AS unread_count
    FROM message m
    LEFT JOIN message_read mr ON mr.message_id = m.id AND mr.reader_user_id = $2
    WHERE m.archived_at IS NULL
      AND m.submission_group_id IS NOT NULL
      AND m.author_id != $2
      AND mr.id IS NULL
    GROUP BY m.submission_group_id
)
`

const contentSelectColumns = `
SELECT DISTINCT cc.id, cc.course_id, cc.course_content_type_id, cc.title, cc.path, cc.position,
       cck.submittable,
       COALESCE(rc.total_results_count, 0),
       r.id, r.grading, r.status, r.created_at,
       sg.id,
       COALESCE(sc.submission_count, 0),
       COALESCE(cu.unread_count, 0),
       COALESCE(gu.unread_count, 0),
       ss.latest_grade_status,
       ss.latest_grade,
       COALESCE(ss.is_unreviewed, 0),
       d.deployment_status
`

const userContentJoins = `
FROM course_member cm
JOIN course c ON c.id = cm.course_id AND c.archived_at IS NULL AND c.deleted_at IS NULL
JOIN course_content cc ON cc.course_id = c.id AND cc.archived_at IS NULL
JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
LEFT JOIN submission_group sg
       ON sg.course_content_id = cc.id AND sg.id IN (SELECT id FROM caller_groups)
LEFT JOIN latest_result lr ON lr.course_content_id = cc.id
LEFT JOIN result r
       ON r.course_content_id = lr.course_content_id AND r.created_at = lr.latest_result_date
LEFT JOIN results_count rc ON rc.course_content_id = cc.id
LEFT JOIN submission_count sc ON sc.course_content_id = cc.id
LEFT JOIN submission_status ss ON ss.submission_group_id = sg.id
LEFT JOIN content_unread cu ON cu.course_content_id = cc.id
LEFT JOIN group_unread gu ON gu.submission_group_id = sg.id
LEFT JOIN course_content_deployment d ON d.course_content_id = cc.id
WHERE cm.user_id = $1 AND cm.deleted_at IS NULL
`

// memberContentCTEs is the member-scoped variant used by the tutor view: the
// group whitelist binds to a course member ($1) and the unread counters to a
// separate reader ($2).
const memberContentCTEs = `
WITH caller_groups AS (
    SELECT sg.id
    FROM submission_group sg
    JOIN submission_group_member sgm ON sgm.submission_group_id = sg.id
    WHERE sgm.course_member_id = $1
),
latest_result AS (
    SELECT r.course_content_id, MAX(r.created_at) AS latest_result_date
    FROM result r
    WHERE r.submission_group_id IN (SELECT id FROM caller_groups)
      AND r.status = 0 AND r.test_system_id IS NOT NULL
    GROUP BY r.course_content_id
),
results_count AS (
    SELECT r.course_content_id, COUNT(r.id) AS total_results_count
    FROM result r
    WHERE r.submission_group_id IN (SELECT id FROM caller_groups)
      AND r.status = 0 AND r.test_system_id IS NOT NULL
    GROUP BY r.course_content_id
),
submission_count AS (
    SELECT sg.course_content_id, COUNT(sa.id) AS submission_count
    FROM submission_artifact sa
    JOIN submission_group sg ON sg.id = sa.submission_group_id
    WHERE sa.submit = true AND sg.id IN (SELECT id FROM caller_groups)
    GROUP BY sg.course_content_id
),
latest_artifact AS (
    SELECT sa.submission_group_id, MAX(sa.created_at) AS latest_artifact_created_at
    FROM submission_artifact sa
    WHERE sa.submit = true
    GROUP BY sa.submission_group_id
),
ranked_grades AS (
    SELECT sa.submission_group_id, g.status, g.grade,
           ROW_NUMBER() OVER (PARTITION BY sa.submission_group_id ORDER BY g.graded_at DESC) AS rn
    FROM submission_artifact sa
    JOIN latest_artifact la
      ON la.submission_group_id = sa.submission_group_id
     AND sa.created_at = la.latest_artifact_created_at
    JOIN submission_grade g ON g.artifact_id = sa.id
    WHERE sa.submit = true
),
submission_status AS (
    SELECT la.submission_group_id,
           rg.status AS latest_grade_status,
           rg.grade AS latest_grade,
           CASE
               WHEN rg.status IS NULL THEN 1
               WHEN rg.status = 0 THEN 1
               ELSE 0
           END AS is_unreviewed
    FROM latest_artifact la
    LEFT JOIN ranked_grades rg
      ON rg.submission_group_id = la.submission_group_id AND rg.rn = 1
),
content_unread AS (
    SELECT m.course_content_id, COUNT(m.id) AS unread_count
    FROM message m
    LEFT JOIN message_read mr ON mr.message_id = m.id AND mr.reader_user_id = $2
    WHERE m.archived_at IS NULL
      AND m.course_content_id IS NOT NULL
      AND m.submission_group_id IS NULL
      AND m.author_id != $2
      AND mr.id IS NULL
    GROUP BY m.course_content_id
),
group_unread AS (
    SELECT m.submission_group_id, COUNT(m.id) AS unread_count
    FROM message m
    LEFT JOIN message_read mr ON mr.message_id = m.id AND mr.reader_user_id = $2
    WHERE m.archived_at IS NULL
      AND m.submission_group_id IS NOT NULL
      AND m.author_id != $2
      AND mr.id IS NULL
    GROUP BY m.submission_group_id
)
`

const memberContentJoins = `
FROM course_member cm
JOIN course c ON c.id = cm.course_id AND c.deleted_at IS NULL
JOIN course_content cc ON cc.course_id = c.id AND cc.archived_at IS NULL
JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
LEFT JOIN submission_group sg
       ON sg.course_content_id = cc.id AND sg.id IN (SELECT id FROM caller_groups)
LEFT JOIN latest_result lr ON lr.course_content_id = cc.id
LEFT JOIN result r
       ON r.course_content_id = lr.course_content_id AND r.created_at = lr.latest_result_date
LEFT JOIN results_count rc ON rc.course_content_id = cc.id
LEFT JOIN submission_count sc ON sc.course_content_id = cc.id
LEFT JOIN submission_status ss ON ss.submission_group_id = sg.id
LEFT JOIN content_unread cu ON cu.course_content_id = cc.id
LEFT JOIN group_unread gu ON gu.submission_group_id = sg.id
LEFT JOIN course_content_deployment d ON d.course_content_id = cc.id
WHERE cm.id = $1 AND cm.deleted_at IS NULL
`

const contentOrder = ` ORDER BY cc.path`

// contentRow is the raw scan target of the composite query.
type contentRow struct {
	ID                  string
	CourseID            string
	CourseContentTypeID string
	Title               string
	Path                ltree.Path
	Position            float64
	Submittable         bool
	ResultCount         int
	ResultID            sql.NullString
	ResultGrading       sql.NullFloat64
	ResultStatus        sql.NullInt64
	ResultCreatedAt     sql.NullTime
	SubmissionGroupID   sql.NullString
	SubmissionCount     int
	ContentUnread       int
	GroupUnread         int
	LatestGradeStatus   sql.NullInt64
	LatestGrade         sql.NullFloat64
	IsUnreviewed        int
	DeploymentStatus    sql.NullString
}

func scanContentRow(row interface{ Scan(...any) error }) (*contentRow, error) {
	cr := &contentRow{}

	if err := row.Scan(&cr.ID, &cr.CourseID, &cr.CourseContentTypeID, &cr.Title, &cr.Path, &cr.Position,
		&cr.Submittable,
		&cr.ResultCount,
		&cr.ResultID, &cr.ResultGrading, &cr.ResultStatus, &cr.ResultCreatedAt,
		&cr.SubmissionGroupID,
		&cr.SubmissionCount,
		&cr.ContentUnread,
		&cr.GroupUnread,
		&cr.LatestGradeStatus,
		&cr.LatestGrade,
		&cr.IsUnreviewed,
		&cr.DeploymentStatus); err != nil {
		return nil, err
	}

	return cr, nil
}

// toView maps a raw row onto the projection DTO. Contents without a
// submission group keep an empty status; units are back-filled later.
func (cr *contentRow) toView() *mmodel.CourseContentView {
	view := &mmodel.CourseContentView{
		ID:                  cr.ID,
		CourseID:            cr.CourseID,
		CourseContentTypeID: cr.CourseContentTypeID,
		Title:               cr.Title,
		Path:                cr.Path,
		Position:            cr.Position,
		Submittable:         cr.Submittable,
		ResultCount:         cr.ResultCount,
		SubmissionCount:     cr.SubmissionCount,
		UnreadMessageCount:  cr.ContentUnread + cr.GroupUnread,
		IsLatestUnreviewed:  cr.IsUnreviewed != 0,
	}

	if cr.DeploymentStatus.Valid {
		view.DeploymentStatus = cr.DeploymentStatus.String
	}

	if cr.SubmissionGroupID.Valid {
		view.SubmissionGroup = &mmodel.SubmissionGroupView{
			ID:              cr.SubmissionGroupID.String,
			CourseContentID: cr.ID,
		}

		if cr.LatestGradeStatus.Valid {
			view.Status = mmodel.GradingStatus(cr.LatestGradeStatus.Int64).String()
		} else {
			view.Status = mmodel.GradingStatusNotReviewed.String()
		}

		if cr.LatestGrade.Valid {
			grade := cr.LatestGrade.Float64
			view.Grading = &grade
		}

		view.UnreviewedCount = cr.IsUnreviewed
	}

	if cr.ResultID.Valid {
		var createdAt time.Time
		if cr.ResultCreatedAt.Valid {
			createdAt = cr.ResultCreatedAt.Time
		}

		view.Result = &mmodel.ResultView{
			ID:        cr.ResultID.String,
			Grading:   cr.ResultGrading.Float64,
			Status:    int(cr.ResultStatus.Int64),
			CreatedAt: createdAt,
		}
	}

	return view
}

// queryUserContents runs the user-scoped composite query. courseID and
// contentID narrow the spine when non-empty.
func queryUserContents(ctx context.Context, db dbresolver.DB, userID, courseID, contentID string) ([]*mmodel.CourseContentView, error) {
	query := userContentCTEs + contentSelectColumns + userContentJoins

	args := []any{userID, userID}

	if courseID != "" {
		args = append(args, courseID)
		query += ` AND cc.course_id = $3`
	}

	if contentID != "" {
		args = append(args, contentID)
		if courseID != "" {
			query += ` AND cc.id = $4`
		} else {
			query += ` AND cc.id = $3`
		}
	}

	query += contentOrder

	return queryContents(ctx, db, query, args...)
}

// queryMemberContents runs the member-scoped composite query used by the
// tutor view. readerUserID drives the unread counters.
func queryMemberContents(ctx context.Context, db dbresolver.DB, courseMemberID, readerUserID, contentID string) ([]*mmodel.CourseContentView, error) {
	query := memberContentCTEs + contentSelectColumns + memberContentJoins

	args := []any{courseMemberID, readerUserID}

	if contentID != "" {
		args = append(args, contentID)
		query += ` AND cc.id = $3`
	}

	query += contentOrder

	return queryContents(ctx, db, query, args...)
}

// queryUserCourses lists the non-archived courses the user is enrolled in,
// surfacing the git hosting slice out of the course properties.
func queryUserCourses(ctx context.Context, db dbresolver.DB, userID string, query mmodel.CourseQuery) ([]*mmodel.CourseView, error) {
	sqlQuery := `SELECT c.id, c.title, c.course_family_id, c.organization_id, c.path, c.properties
		FROM course c
		JOIN course_member cm ON cm.course_id = c.id AND cm.deleted_at IS NULL
		WHERE cm.user_id = $1 AND c.archived_at IS NULL AND c.deleted_at IS NULL`

	args := []any{userID}

	if query.OrganizationID != nil {
		args = append(args, *query.OrganizationID)
		sqlQuery += ` AND c.organization_id = $2`
	}

	sqlQuery += ` ORDER BY c.path`

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*mmodel.CourseView

	for rows.Next() {
		var (
			view       mmodel.CourseView
			properties mpostgres.JSONBMap
		)

		if err := rows.Scan(&view.ID, &view.Title, &view.CourseFamilyID, &view.OrganizationID,
			&view.Path, &properties); err != nil {
			return nil, err
		}

		if gitlab, ok := properties["gitlab"].(map[string]any); ok {
			repo := &mmodel.CourseRepositoryView{}

			if url, ok := gitlab["url"].(string); ok {
				repo.ProviderURL = url
			}

			if fullPath, ok := gitlab["full_path"].(string); ok {
				repo.FullPath = fullPath
			}

			view.Repository = repo
		}

		courses = append(courses, &view)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return courses, nil
}

func queryContents(ctx context.Context, db dbresolver.DB, query string, args ...any) ([]*mmodel.CourseContentView, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*mmodel.CourseContentView

	for rows.Next() {
		cr, err := scanContentRow(rows)
		if err != nil {
			return nil, err
		}

		views = append(views, cr.toView())
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return views, nil
}
