package mmodel

import "time"

// SubmissionArtifact is an uploaded work product of a submission group.
// Immutable once uploaded; Submit marks official submissions that count
// toward grading.
type SubmissionArtifact struct {
	ID                        string     `json:"id"`
	SubmissionGroupID         string     `json:"submissionGroupId"`
	UploadedByCourseMemberID  string     `json:"uploadedByCourseMemberId"`
	Submit                    bool       `json:"submit"`
	ContentSize               int64      `json:"contentSize"`
	Properties                map[string]any `json:"properties,omitempty"`
	UploadedAt                time.Time  `json:"uploadedAt"`
	CreatedAt                 time.Time  `json:"createdAt"`
}

// SubmissionGrade is an append-only grading record on an artifact; the latest
// grade per artifact wins. Grade is within [0, 1].
type SubmissionGrade struct {
	ID                       string        `json:"id"`
	ArtifactID               string        `json:"artifactId"`
	GradedByCourseMemberID   string        `json:"gradedByCourseMemberId"`
	Grade                    float64       `json:"grade"`
	Status                   GradingStatus `json:"status"`
	Feedback                 string        `json:"feedback,omitempty"`
	GradedAt                 time.Time     `json:"gradedAt"`
	CreatedAt                time.Time     `json:"createdAt"`
}

// Result is one automated test run against an artifact.
type Result struct {
	ID                   string     `json:"id"`
	CourseContentID      string     `json:"courseContentId"`
	SubmissionGroupID    string     `json:"submissionGroupId"`
	SubmissionArtifactID string     `json:"submissionArtifactId"`
	TestSystemID         *string    `json:"testSystemId"`
	Status               int        `json:"status"`
	Grading              float64    `json:"grading"`
	Properties           map[string]any `json:"properties,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}
