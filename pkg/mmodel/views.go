package mmodel

import (
	"time"

	"github.com/computor-org/computor/pkg/ltree"
)

// CourseContentQuery carries the filters of a content-list view request.
// Fields left nil do not participate in the cache key.
type CourseContentQuery struct {
	CourseID            *string `json:"course_id,omitempty"`
	CourseContentTypeID *string `json:"course_content_type_id,omitempty"`
	Path                *string `json:"path,omitempty"`
	Limit               *int    `json:"limit,omitempty"`
	Skip                *int    `json:"skip,omitempty"`
}

// Params returns the query as a map for hashing and related-id extraction.
func (q CourseContentQuery) Params() map[string]any {
	m := map[string]any{}

	if q.CourseID != nil {
		m["course_id"] = *q.CourseID
	}

	if q.CourseContentTypeID != nil {
		m["course_content_type_id"] = *q.CourseContentTypeID
	}

	if q.Path != nil {
		m["path"] = *q.Path
	}

	if q.Limit != nil {
		m["limit"] = *q.Limit
	}

	if q.Skip != nil {
		m["skip"] = *q.Skip
	}

	return m
}

// CourseQuery carries the filters of a course-list view request.
type CourseQuery struct {
	OrganizationID *string `json:"organization_id,omitempty"`
	CourseFamilyID *string `json:"course_family_id,omitempty"`
	Limit          *int    `json:"limit,omitempty"`
	Skip           *int    `json:"skip,omitempty"`
}

// Params returns the query as a map for hashing and related-id extraction.
func (q CourseQuery) Params() map[string]any {
	m := map[string]any{}

	if q.OrganizationID != nil {
		m["organization_id"] = *q.OrganizationID
	}

	if q.CourseFamilyID != nil {
		m["course_family_id"] = *q.CourseFamilyID
	}

	if q.Limit != nil {
		m["limit"] = *q.Limit
	}

	if q.Skip != nil {
		m["skip"] = *q.Skip
	}

	return m
}

// SubmissionGroupView is the group slice embedded in content projections.
type SubmissionGroupView struct {
	ID              string   `json:"id"`
	CourseContentID string   `json:"courseContentId"`
	MemberIDs       []string `json:"memberIds"`
}

// ResultView is the latest automated test result embedded in content
// projections.
type ResultView struct {
	ID        string    `json:"id"`
	Grading   float64   `json:"grading"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// CourseContentView is the per-content projection returned by the student,
// tutor and lecturer views. Status carries the grading-status wire string;
// empty means no status (unit without descendants).
type CourseContentView struct {
	ID                  string               `json:"id"`
	CourseID            string               `json:"courseId"`
	CourseContentTypeID string               `json:"courseContentTypeId"`
	Title               string               `json:"title"`
	Path                ltree.Path           `json:"path"`
	Position            float64              `json:"position"`
	Submittable         bool                 `json:"submittable"`
	DeploymentStatus    string               `json:"deploymentStatus,omitempty"`
	SubmissionGroup     *SubmissionGroupView `json:"submissionGroup"`
	Result              *ResultView          `json:"result"`
	ResultCount         int                  `json:"resultCount"`
	SubmissionCount     int                  `json:"submissionCount"`
	Grading             *float64             `json:"grading"`
	Status              string               `json:"status,omitempty"`
	UnreadMessageCount  int                  `json:"unreadMessageCount"`
	UnreviewedCount     int                  `json:"unreviewedCount"`
	IsLatestUnreviewed  bool                 `json:"isLatestUnreviewed"`
}

// CourseRepositoryView is the git hosting slice of a course projection.
type CourseRepositoryView struct {
	ProviderURL string `json:"providerUrl,omitempty"`
	FullPath    string `json:"fullPath,omitempty"`
}

// CourseView is the per-course projection for enrolled users.
type CourseView struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	CourseFamilyID string                `json:"courseFamilyId"`
	OrganizationID string                `json:"organizationId"`
	Path           ltree.Path            `json:"path"`
	Repository     *CourseRepositoryView `json:"repository"`
}
