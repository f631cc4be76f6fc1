package views

import (
	"context"
	"time"

	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mcache"
	"github.com/computor-org/computor/pkg/mopentelemetry"
)

// LecturerCourseContentRow is the course-wide per-content aggregate the
// lecturer view exposes: deployment state plus counters across all groups.
type LecturerCourseContentRow struct {
	ID                  string  `json:"id"`
	CourseID            string  `json:"courseId"`
	CourseContentTypeID string  `json:"courseContentTypeId"`
	Title               string  `json:"title"`
	Path                string  `json:"path"`
	Submittable         bool    `json:"submittable"`
	DeploymentStatus    string  `json:"deploymentStatus,omitempty"`
	GroupCount          int     `json:"groupCount"`
	SubmissionCount     int     `json:"submissionCount"`
	GradedCount         int     `json:"gradedCount"`
	AverageGrade        float64 `json:"averageGrade"`
}

// LecturerViewRepository serves course-wide projections for lecturers:
// per-content aggregates across every submission group.
type LecturerViewRepository struct {
	View
}

// NewLecturerViewRepository returns a LecturerViewRepository with the
// lecturer TTL (5 minutes).
func NewLecturerViewRepository(cache *mcache.Cache, resolver ConnectionResolver) *LecturerViewRepository {
	return &LecturerViewRepository{View: NewView(cache, resolver, 300*time.Second)}
}

// ListCourseContents returns the course-wide per-content aggregates.
func (v *LecturerViewRepository) ListCourseContents(ctx context.Context, userID, courseID string) ([]*LecturerCourseContentRow, error) {
	tracer := pkg.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "views.lecturer.list_course_contents")
	defer span.End()

	params := map[string]any{"course_id": courseID}

	var cached []*LecturerCourseContentRow
	if v.getCachedQueryView(ctx, userID, "lecturer_course_contents", params, &cached) {
		return cached, nil
	}

	db, err := v.db(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		WITH group_counts AS (
		    SELECT sg.course_content_id, COUNT(DISTINCT sg.id) AS group_count
		    FROM submission_group sg
		    WHERE sg.course_id = $1
		    GROUP BY sg.course_content_id
		),
		submission_counts AS (
		    SELECT sg.course_content_id, COUNT(sa.id) AS submission_count
		    FROM submission_artifact sa
		    JOIN submission_group sg ON sg.id = sa.submission_group_id
		    WHERE sg.course_id = $1 AND sa.submit = true
		    GROUP BY sg.course_content_id
		),
		grade_stats AS (
		    SELECT sg.course_content_id,
		           COUNT(g.id) AS graded_count,
		           COALESCE(AVG(g.grade), 0) AS average_grade
		    FROM submission_grade g
		    JOIN submission_artifact sa ON sa.id = g.artifact_id
		    JOIN submission_group sg ON sg.id = sa.submission_group_id
		    WHERE sg.course_id = $1
		    GROUP BY sg.course_content_id
		)
		SELECT cc.id, cc.course_id, cc.course_content_type_id, cc.title, cc.path::text,
		       cck.submittable,
		       d.deployment_status,
		       COALESCE(gc.group_count, 0),
		       COALESCE(scnt.submission_count, 0),
		       COALESCE(gs.graded_count, 0),
		       COALESCE(gs.average_grade, 0)
		FROM course_content cc
		JOIN course_content_kind cck ON cck.id = cc.course_content_kind_id
		LEFT JOIN course_content_deployment d ON d.course_content_id = cc.id
		LEFT JOIN group_counts gc ON gc.course_content_id = cc.id
		LEFT JOIN submission_counts scnt ON scnt.course_content_id = cc.id
		LEFT JOIN grade_stats gs ON gs.course_content_id = cc.id
		WHERE cc.course_id = $1 AND cc.archived_at IS NULL
		ORDER BY cc.path`, courseID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to query database", err)

		return nil, err
	}
	defer rows.Close()

	var result []*LecturerCourseContentRow

	for rows.Next() {
		var (
			row              LecturerCourseContentRow
			deploymentStatus *string
		)

		if err := rows.Scan(&row.ID, &row.CourseID, &row.CourseContentTypeID, &row.Title, &row.Path,
			&row.Submittable, &deploymentStatus,
			&row.GroupCount, &row.SubmissionCount, &row.GradedCount, &row.AverageGrade); err != nil {
			mopentelemetry.HandleSpanError(&span, "Failed to scan row", err)

			return nil, err
		}

		if deploymentStatus != nil {
			row.DeploymentStatus = *deploymentStatus
		}

		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		mopentelemetry.HandleSpanError(&span, "Failed to get rows", err)

		return nil, err
	}

	extra := map[string]string{"lecturer_view": courseID}

	for _, cc := range result {
		extra["course_content:"+cc.ID] = ""
	}

	v.setCachedQueryView(ctx, userID, "lecturer_course_contents", params, result, extra)

	return result, nil
}
