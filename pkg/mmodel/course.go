package mmodel

import (
	"time"

	"github.com/computor-org/computor/pkg/ltree"
)

// Course is an archivable offering inside a course family. OrganizationID is
// denormalized from the family so per-course tags never need a join.
type Course struct {
	ID             string         `json:"id"`
	CourseFamilyID string         `json:"courseFamilyId"`
	OrganizationID string         `json:"organizationId"`
	Title          string         `json:"title"`
	Path           ltree.Path     `json:"path"`
	Properties     map[string]any `json:"properties,omitempty"`
	ArchivedAt     *time.Time     `json:"archivedAt"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      *time.Time     `json:"deletedAt"`
}

// CourseContentKind classifies content rows; Submittable marks kinds that
// receive student submissions and therefore contribute to rollups.
type CourseContentKind struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Submittable bool   `json:"submittable"`
}

// CourseContentType is a course-scoped refinement of a kind (e.g. "mandatory
// assignment", "bonus assignment") carrying display metadata.
type CourseContentType struct {
	ID                  string `json:"id"`
	CourseID            string `json:"courseId"`
	CourseContentKindID string `json:"courseContentKindId"`
	Slug                string `json:"slug"`
	Title               string `json:"title"`
	Color               string `json:"color"`
}

// CourseContent is a node of the course's content tree, addressed by a dotted
// label path. Non-submittable nodes are units whose status derives from their
// submittable descendants.
type CourseContent struct {
	ID                  string         `json:"id"`
	CourseID            string         `json:"courseId"`
	CourseContentTypeID string         `json:"courseContentTypeId"`
	CourseContentKindID string         `json:"courseContentKindId"`
	Title               string         `json:"title"`
	Path                ltree.Path     `json:"path"`
	Position            float64        `json:"position"`
	Properties          map[string]any `json:"properties,omitempty"`
	ArchivedAt          *time.Time     `json:"archivedAt"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// CourseMember binds a user to a course with a role. Membership is
// course-scoped for life.
type CourseMember struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"courseId"`
	UserID       string     `json:"userId"`
	CourseRoleID string     `json:"courseRoleId"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt"`
}

// SubmissionGroup is the per-assignment unit of work; its course and content
// bindings never change after creation.
type SubmissionGroup struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"courseId"`
	CourseContentID string    `json:"courseContentId"`
	MaxGroupSize    int       `json:"maxGroupSize"`
	Properties      map[string]any `json:"properties,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SubmissionGroupMember links a course member into a submission group.
type SubmissionGroupMember struct {
	ID                string    `json:"id"`
	SubmissionGroupID string    `json:"submissionGroupId"`
	CourseMemberID    string    `json:"courseMemberId"`
	CreatedAt         time.Time `json:"createdAt"`
}
