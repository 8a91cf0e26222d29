package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"llnd-portal/internal/admin"
	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/validation"
)

// AdminHandler serves the admin screens.
type AdminHandler struct {
	board    *admin.StatusBoard
	reviewer *admin.Reviewer
	stats    admin.StatsSource
	students *admin.Students
	forms    *admin.Forms
}

func NewAdminHandler(board *admin.StatusBoard, reviewer *admin.Reviewer, stats admin.StatsSource, students *admin.Students, forms *admin.Forms) *AdminHandler {
	return &AdminHandler{board: board, reviewer: reviewer, stats: stats, students: students, forms: forms}
}

// Students handles GET /v1/admin/students?page=&limit=&search=&status=
func (h *AdminHandler) Students(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := portalapi.StudentFilter{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Status: portalapi.StudentActivity(q.Get("status")),
	}
	switch filter.Status {
	case portalapi.StudentsAll, portalapi.StudentsActive, portalapi.StudentsInactive:
	default:
		writeError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}

	board, err := h.board.LoadStudents(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, board)
}

// Overview handles GET /v1/admin/overview
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := admin.LoadOverview(r.Context(), h.stats)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// Review handles PATCH /v1/admin/enrollment-forms/{id}/review
func (h *AdminHandler) Review(w http.ResponseWriter, r *http.Request) {
	var review portalapi.Review
	if err := decodeJSON(r, &review); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.reviewer.Review(r.Context(), mux.Vars(r)["id"], review)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Review saved", rec)
}

// Student handles GET /v1/admin/students/{id}
func (h *AdminHandler) Student(w http.ResponseWriter, r *http.Request) {
	out, err := h.students.Detail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// CreateStudent handles POST /v1/admin/students
func (h *AdminHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var in portalapi.StudentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := h.students.Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Student created", st)
}

// UpdateStudent handles PUT /v1/admin/students/{id}
func (h *AdminHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var in portalapi.StudentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := h.students.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Student updated", st)
}

// DeleteStudent handles DELETE /v1/admin/students/{id}
func (h *AdminHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.students.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Student deleted", nil)
}

// ToggleStudent handles PATCH /v1/admin/students/{id}/toggle-status
func (h *AdminHandler) ToggleStudent(w http.ResponseWriter, r *http.Request) {
	st, err := h.students.ToggleStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, st)
}

// Attempts handles GET /v1/admin/attempts?studentId=&passed=&page=&limit=
func (h *AdminHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := portalapi.AttemptFilter{StudentID: q.Get("studentId"), Page: page, Limit: limit}
	if raw := q.Get("passed"); raw != "" {
		passed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "passed must be true or false")
			return
		}
		filter.Passed = &passed
	}
	out, err := h.students.Attempts(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// Attempt handles GET /v1/admin/attempts/{id}
func (h *AdminHandler) Attempt(w http.ResponseWriter, r *http.Request) {
	out, err := h.students.Attempt(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// Enroll handles POST /v1/admin/enrollments
func (h *AdminHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var in portalapi.EnrollmentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.students.Enroll(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Enrollment created", out)
}

// CancelEnrollment handles PATCH /v1/admin/enrollments/{id}/cancel
func (h *AdminHandler) CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	if err := h.students.CancelEnrollment(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Enrollment cancelled", nil)
}

// Forms handles GET /v1/admin/enrollment-forms?page=&limit=&search=&status=&sortBy=&sortOrder=
func (h *AdminHandler) Forms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	out, err := h.forms.List(r.Context(), portalapi.FormFilter{
		Page:      page,
		Limit:     limit,
		Search:    q.Get("search"),
		Status:    portalapi.FormStatus(q.Get("status")),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// Form handles GET /v1/admin/enrollment-forms/{id}
func (h *AdminHandler) Form(w http.ResponseWriter, r *http.Request) {
	out, err := h.forms.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, out)
}

// SubmitForm handles POST /v1/admin/enrollment-forms
func (h *AdminHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var in portalapi.EnrollmentFormInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.forms.Submit(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Enrollment form submitted", out)
}

// UploadDocument handles POST /v1/admin/enrollment-forms/{id}/documents (multipart: documentType, file).
func (h *AdminHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxUploadBytes+maxEventBytes)
	if err := r.ParseMultipartForm(validation.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, validation.MsgFileSize)
		return
	}
	var upload validation.Upload
	if file, header, err := r.FormFile("file"); err == nil {
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read file")
			return
		}
		upload = validation.Upload{Filename: header.Filename, Data: data}
	}
	doc, err := h.forms.Upload(r.Context(), mux.Vars(r)["id"], r.FormValue("documentType"), upload)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Document uploaded", doc)
}

// FormDocument handles GET /v1/admin/enrollment-forms/{id}/{format}, returning
// the rendered document itself.
func (h *AdminHandler) FormDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	body, contentType, err := h.forms.Document(r.Context(), vars["id"], portalapi.DocumentFormat(vars["format"]))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
