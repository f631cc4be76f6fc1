package mmodel

import "time"

// GradingsQuery carries the filters of a grading-stats request.
type GradingsQuery struct {
	CourseID            *string `json:"course_id,omitempty"`
	PathPrefix          *string `json:"path_prefix,omitempty"`
	CourseContentTypeID *string `json:"course_content_type_id,omitempty"`
	Depth               *int    `json:"depth,omitempty"`
}

// Params returns the query as a map for hashing and related-id extraction.
func (q GradingsQuery) Params() map[string]any {
	m := map[string]any{}

	if q.CourseID != nil {
		m["course_id"] = *q.CourseID
	}

	if q.PathPrefix != nil {
		m["path_prefix"] = *q.PathPrefix
	}

	if q.CourseContentTypeID != nil {
		m["course_content_type_id"] = *q.CourseContentTypeID
	}

	if q.Depth != nil {
		m["depth"] = *q.Depth
	}

	return m
}

// ContentTypeGradingStats is the per-content-type slice of a rollup node.
type ContentTypeGradingStats struct {
	CourseContentTypeID    string     `json:"courseContentTypeId"`
	CourseContentTypeSlug  string     `json:"courseContentTypeSlug"`
	CourseContentTypeTitle string     `json:"courseContentTypeTitle"`
	CourseContentTypeColor string     `json:"courseContentTypeColor"`
	MaxAssignments         int        `json:"maxAssignments"`
	SubmittedAssignments   int        `json:"submittedAssignments"`
	ProgressPercentage     float64    `json:"progressPercentage"`
	LatestSubmissionAt     *time.Time `json:"latestSubmissionAt"`
}

// GradingNode is one rollup node, one per path prefix of any submittable
// content up to the requested depth. Ungraded and unsubmitted descendants
// contribute grade 0 to AverageGrading.
type GradingNode struct {
	Path                 string                    `json:"path"`
	Title                string                    `json:"title,omitempty"`
	MaxAssignments       int                       `json:"maxAssignments"`
	SubmittedAssignments int                       `json:"submittedAssignments"`
	ProgressPercentage   float64                   `json:"progressPercentage"`
	LatestSubmissionAt   *time.Time                `json:"latestSubmissionAt"`
	GradedAssignments    int                       `json:"gradedAssignments"`
	AverageGrading       float64                   `json:"averageGrading"`
	GradingStatus        string                    `json:"gradingStatus,omitempty"`
	ByContentType        []ContentTypeGradingStats `json:"byContentType"`
}

// CourseMemberGradings is the full hierarchy projection for one member.
type CourseMemberGradings struct {
	CourseMemberID            string                    `json:"courseMemberId"`
	CourseID                  string                    `json:"courseId"`
	TotalMaxAssignments       int                       `json:"totalMaxAssignments"`
	TotalSubmittedAssignments int                       `json:"totalSubmittedAssignments"`
	OverallProgressPercentage float64                   `json:"overallProgressPercentage"`
	LatestSubmissionAt        *time.Time                `json:"latestSubmissionAt"`
	ByContentType             []ContentTypeGradingStats `json:"byContentType"`
	Nodes                     []GradingNode             `json:"nodes"`
}

// CourseMemberGradingsRow is the course-level batch projection for one member
// of a course-wide listing.
type CourseMemberGradingsRow struct {
	CourseMemberID            string                    `json:"courseMemberId"`
	CourseID                  string                    `json:"courseId"`
	UserID                    string                    `json:"userId,omitempty"`
	Username                  string                    `json:"username,omitempty"`
	GivenName                 string                    `json:"givenName,omitempty"`
	FamilyName                string                    `json:"familyName,omitempty"`
	TotalMaxAssignments       int                       `json:"totalMaxAssignments"`
	TotalSubmittedAssignments int                       `json:"totalSubmittedAssignments"`
	OverallProgressPercentage float64                   `json:"overallProgressPercentage"`
	LatestSubmissionAt        *time.Time                `json:"latestSubmissionAt"`
	ByContentType             []ContentTypeGradingStats `json:"byContentType"`
}
