package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/computor-org/computor/internal/services/views"
	"github.com/computor-org/computor/pkg"
	"github.com/computor-org/computor/pkg/mmodel"
	nethttp "github.com/computor-org/computor/pkg/net/http"
)

// ViewsHandler exposes the aggregated projections over HTTP. Authentication
// is owned by the SSO layer in front; the authenticated user id arrives in
// the X-User-Id header.
type ViewsHandler struct {
	Student  *views.StudentViewRepository
	Tutor    *views.TutorViewRepository
	Lecturer *views.LecturerViewRepository
	Gradings *views.GradingsViewRepository
}

func callerUserID(c *fiber.Ctx) (string, error) {
	userID := c.Get("X-User-Id")
	if userID == "" {
		return "", pkg.UnauthorizedError{
			Title:   "Unauthorized",
			Message: "No authenticated user in request context.",
		}
	}

	return userID, nil
}

func optional(c *fiber.Ctx, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}

	return nil
}

func optionalInt(c *fiber.Ctx, key string) *int {
	if v := c.QueryInt(key, -1); v >= 0 {
		return &v
	}

	return nil
}

// ListStudentCourses handles GET /v1/students/courses.
func (h *ViewsHandler) ListStudentCourses(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	query := mmodel.CourseQuery{
		OrganizationID: optional(c, "organization_id"),
		CourseFamilyID: optional(c, "course_family_id"),
	}

	courses, err := h.Student.ListCourses(c.UserContext(), userID, query)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, courses)
}

// GetStudentCourse handles GET /v1/students/courses/:course_id.
func (h *ViewsHandler) GetStudentCourse(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	course, err := h.Student.GetCourse(c.UserContext(), userID, c.Params("course_id"))
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, course)
}

// ListStudentCourseContents handles GET /v1/students/course-contents.
func (h *ViewsHandler) ListStudentCourseContents(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	query := mmodel.CourseContentQuery{
		CourseID:            optional(c, "course_id"),
		CourseContentTypeID: optional(c, "course_content_type_id"),
		Path:                optional(c, "path"),
		Limit:               optionalInt(c, "limit"),
		Skip:                optionalInt(c, "skip"),
	}

	contents, err := h.Student.ListCourseContents(c.UserContext(), userID, query)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, contents)
}

// GetStudentCourseContent handles GET /v1/students/course-contents/:content_id.
func (h *ViewsHandler) GetStudentCourseContent(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	content, err := h.Student.GetCourseContent(c.UserContext(), userID, c.Params("content_id"))
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, content)
}

// ListTutorCourseContents handles GET /v1/tutors/course-members/:member_id/course-contents.
func (h *ViewsHandler) ListTutorCourseContents(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	query := mmodel.CourseContentQuery{
		CourseID:            optional(c, "course_id"),
		CourseContentTypeID: optional(c, "course_content_type_id"),
		Path:                optional(c, "path"),
	}

	contents, err := h.Tutor.ListCourseContents(c.UserContext(), userID, c.Params("member_id"), query)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, contents)
}

// GetTutorCourseContent handles GET /v1/tutors/course-members/:member_id/course-contents/:content_id.
func (h *ViewsHandler) GetTutorCourseContent(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	content, err := h.Tutor.GetCourseContent(c.UserContext(), userID, c.Params("member_id"), c.Params("content_id"))
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, content)
}

// ListLecturerCourseContents handles GET /v1/lecturers/courses/:course_id/course-contents.
func (h *ViewsHandler) ListLecturerCourseContents(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	contents, err := h.Lecturer.ListCourseContents(c.UserContext(), userID, c.Params("course_id"))
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, contents)
}

// GetCourseMemberGradings handles GET /v1/course-members/:member_id/gradings.
func (h *ViewsHandler) GetCourseMemberGradings(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	query := mmodel.GradingsQuery{
		CourseID:            optional(c, "course_id"),
		PathPrefix:          optional(c, "path_prefix"),
		CourseContentTypeID: optional(c, "course_content_type_id"),
		Depth:               optionalInt(c, "depth"),
	}

	gradings, err := h.Gradings.Get(c.UserContext(), userID, c.Params("member_id"), query)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, gradings)
}

// ListCourseMemberGradings handles GET /v1/courses/:course_id/gradings.
func (h *ViewsHandler) ListCourseMemberGradings(c *fiber.Ctx) error {
	userID, err := callerUserID(c)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	query := mmodel.GradingsQuery{
		PathPrefix:          optional(c, "path_prefix"),
		CourseContentTypeID: optional(c, "course_content_type_id"),
	}

	rows, err := h.Gradings.List(c.UserContext(), userID, c.Params("course_id"), query)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, rows)
}
