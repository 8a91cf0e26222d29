package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"llnd-portal/internal/portalapi"
)

// CourseLookup is the dropdown data the wizard's course step needs.
type CourseLookup interface {
	Courses(ctx context.Context) ([]portalapi.CourseOption, error)
	CourseDates(ctx context.Context, courseID string) ([]portalapi.CourseDateOption, error)
}

// CourseHandler proxies course dropdowns from the portal API.
type CourseHandler struct {
	courses CourseLookup
}

func NewCourseHandler(courses CourseLookup) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// Courses handles GET /v1/courses
func (h *CourseHandler) Courses(w http.ResponseWriter, r *http.Request) {
	out, err := h.courses.Courses(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// CourseDates handles GET /v1/courses/{id}/dates
func (h *CourseHandler) CourseDates(w http.ResponseWriter, r *http.Request) {
	out, err := h.courses.CourseDates(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}
