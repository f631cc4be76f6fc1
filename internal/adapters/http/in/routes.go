package in

import (
	"github.com/gofiber/fiber/v2"

	nethttp "github.com/computor-org/computor/pkg/net/http"
)

// NewRouter registers the view routes on a fiber app.
func NewRouter(handler *ViewsHandler) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	f.Get("/health", nethttp.Ping)

	v1 := f.Group("/v1")

	v1.Get("/students/courses", handler.ListStudentCourses)
	v1.Get("/students/courses/:course_id", handler.GetStudentCourse)
	v1.Get("/students/course-contents", handler.ListStudentCourseContents)
	v1.Get("/students/course-contents/:content_id", handler.GetStudentCourseContent)

	v1.Get("/tutors/course-members/:member_id/course-contents", handler.ListTutorCourseContents)
	v1.Get("/tutors/course-members/:member_id/course-contents/:content_id", handler.GetTutorCourseContent)

	v1.Get("/lecturers/courses/:course_id/course-contents", handler.ListLecturerCourseContents)

	v1.Get("/course-members/:member_id/gradings", handler.GetCourseMemberGradings)
	v1.Get("/courses/:course_id/gradings", handler.ListCourseMemberGradings)

	return f
}
