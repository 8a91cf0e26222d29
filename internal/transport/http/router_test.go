package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"llnd-portal/internal/admin"
	"llnd-portal/internal/app"
	"llnd-portal/internal/catalog"
	"llnd-portal/internal/domain"
	"llnd-portal/internal/infra/memory"
	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/validation"
)

// stubPortal lists courses through the same stub the course handler uses.
type stubPortal struct{ stubDirectory }

func (stubPortal) SubmitAttempt(_ context.Context, sub domain.QuizSubmission) (domain.AttemptOutcome, error) {
	return domain.AttemptOutcome{AttemptID: "att-1", StudentID: sub.StudentID, Passed: sub.Totals.Passed}, nil
}

func (stubPortal) SubmitGuestAttempt(_ context.Context, sub domain.GuestQuizSubmission) (domain.AttemptOutcome, error) {
	return domain.AttemptOutcome{AttemptID: "att-g", Passed: sub.Quiz.Totals.Passed}, nil
}

func (stubPortal) SubmitEnrollment(context.Context, domain.EnrollmentSubmission) (domain.EnrollmentOutcome, error) {
	return domain.EnrollmentOutcome{EnrollmentID: "enr-1"}, nil
}

func (stubPortal) ProcessCardPayment(context.Context, portalapi.CardPayment) (portalapi.CardPaymentResult, error) {
	return portalapi.CardPaymentResult{TransactionID: "txn-1", Status: "succeeded"}, nil
}

func (stubPortal) SubmitPaymentProof(_ context.Context, _ string, proof validation.PaymentProof) (portalapi.PaymentProofRecord, error) {
	return portalapi.PaymentProofRecord{ID: "proof-1", TransactionID: proof.TransactionID, Amount: proof.Amount}, nil
}

type stubDirectory struct{}

func (stubDirectory) ListStudents(_ context.Context, f portalapi.StudentFilter) (portalapi.Page[portalapi.Student], error) {
	return portalapi.Page[portalapi.Student]{
		Items: []portalapi.Student{{ID: "s1", Name: "Jordan Lee", Active: true}},
		Total: 1, Page: f.Page, Limit: f.Limit,
	}, nil
}

func (stubDirectory) QuizStatus(_ context.Context, id string) (portalapi.QuizStatus, error) {
	return portalapi.QuizStatus{StudentID: id, Completed: true}, nil
}

func (stubDirectory) EnrollmentStatus(_ context.Context, id string) (portalapi.EnrollmentStatus, error) {
	return portalapi.EnrollmentStatus{StudentID: id}, nil
}

func (stubDirectory) ReviewEnrollmentForm(_ context.Context, id string, r portalapi.Review) (portalapi.EnrollmentFormRecord, error) {
	return portalapi.EnrollmentFormRecord{ID: id, Status: r.Status}, nil
}

func (stubDirectory) StudentStats(context.Context) (portalapi.StudentStats, error) {
	return portalapi.StudentStats{Total: 1, Active: 1}, nil
}

func (stubDirectory) EnrollmentFormStats(context.Context) (portalapi.FormStats, error) {
	return portalapi.FormStats{Total: 2}, nil
}

func (stubDirectory) Courses(context.Context) ([]portalapi.CourseOption, error) {
	return []portalapi.CourseOption{{ID: "c1", Name: "Certificate III in Individual Support", Fee: 450}}, nil
}

func (stubDirectory) CourseDates(_ context.Context, courseID string) ([]portalapi.CourseDateOption, error) {
	if courseID != "c1" {
		return nil, &portalapi.APIError{Status: http.StatusNotFound, Message: "Course not found"}
	}
	return []portalapi.CourseDateOption{{ID: "d1", CourseID: "c1", StartDate: "2026-04-01"}}, nil
}

func (stubDirectory) GetStudent(_ context.Context, id string) (portalapi.Student, error) {
	if id == "missing" {
		return portalapi.Student{}, &portalapi.APIError{Status: http.StatusNotFound, Message: "Student not found"}
	}
	return portalapi.Student{ID: id, Name: "Jordan Lee", Active: true}, nil
}

func (stubDirectory) CreateStudent(_ context.Context, in portalapi.StudentInput) (portalapi.Student, error) {
	return portalapi.Student{ID: "s2", Name: in.Name, Email: in.Email, Active: true}, nil
}

func (stubDirectory) UpdateStudent(_ context.Context, id string, in portalapi.StudentInput) (portalapi.Student, error) {
	return portalapi.Student{ID: id, Name: in.Name, Email: in.Email, Active: true}, nil
}

func (stubDirectory) DeleteStudent(context.Context, string) error {
	return nil
}

func (stubDirectory) ToggleStudentStatus(_ context.Context, id string) (portalapi.Student, error) {
	return portalapi.Student{ID: id, Active: false}, nil
}

func (stubDirectory) Eligibility(_ context.Context, id string) (portalapi.Eligibility, error) {
	return portalapi.Eligibility{StudentID: id, Passed: true, CanEnroll: true}, nil
}

func (stubDirectory) GetAttempt(_ context.Context, id string) (portalapi.Attempt, error) {
	return portalapi.Attempt{ID: id, StudentID: "s1"}, nil
}

func (stubDirectory) ListAttempts(_ context.Context, f portalapi.AttemptFilter) (portalapi.Page[portalapi.Attempt], error) {
	if f.Passed != nil && !*f.Passed {
		return portalapi.Page[portalapi.Attempt]{Page: f.Page, Limit: f.Limit}, nil
	}
	return portalapi.Page[portalapi.Attempt]{Items: []portalapi.Attempt{{ID: "att-1", StudentID: f.StudentID}}, Total: 1, Page: f.Page, Limit: f.Limit}, nil
}

func (stubDirectory) CreateEnrollment(_ context.Context, in portalapi.EnrollmentInput) (portalapi.Enrollment, error) {
	return portalapi.Enrollment{ID: "enr-9", StudentID: in.StudentID, CourseID: in.CourseID, CourseDateID: in.CourseDateID, Status: "active"}, nil
}

func (stubDirectory) CancelEnrollment(context.Context, string) error {
	return nil
}

func (stubDirectory) ListEnrollmentForms(_ context.Context, f portalapi.FormFilter) (portalapi.Page[portalapi.EnrollmentFormRecord], error) {
	return portalapi.Page[portalapi.EnrollmentFormRecord]{Items: []portalapi.EnrollmentFormRecord{{ID: "f1", StudentID: "s1", Status: portalapi.FormPending}}, Total: 1, Page: f.Page, Limit: f.Limit}, nil
}

func (stubDirectory) GetEnrollmentForm(_ context.Context, id string) (portalapi.EnrollmentFormRecord, error) {
	return portalapi.EnrollmentFormRecord{ID: id, StudentID: "s1", Status: portalapi.FormPending}, nil
}

func (stubDirectory) SubmitEnrollmentForm(_ context.Context, in portalapi.EnrollmentFormInput) (portalapi.EnrollmentFormRecord, error) {
	return portalapi.EnrollmentFormRecord{ID: "f9", StudentID: in.StudentID, Status: portalapi.FormPending}, nil
}

// UploadDocument checks the file the way the real client does.
func (stubDirectory) UploadDocument(_ context.Context, formID, documentType string, file validation.Upload) (portalapi.Document, error) {
	if err := validation.Document(documentType, file); err != nil {
		return portalapi.Document{}, err
	}
	return portalapi.Document{ID: "doc-1", FormID: formID, DocumentType: documentType, Filename: file.Filename}, nil
}

func (stubDirectory) FormDocument(_ context.Context, formID string, format portalapi.DocumentFormat) ([]byte, string, error) {
	if format == portalapi.FormatHTML {
		return []byte("<h1>" + formID + "</h1>"), "text/html; charset=utf-8", nil
	}
	return []byte("%PDF-1.4\n"), "application/pdf", nil
}

func newTestServer(t *testing.T) (*httptest.Server, *app.FlowService) {
	t.Helper()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(catalog.Default()), "", time.Minute)
	service := app.NewFlowService(memory.NewSessionStore(), catalogs, stubPortal{}).
		WithClock(func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) })
	dir := stubDirectory{}
	router := NewRouter(Handlers{
		Flows:   NewFlowHandler(service),
		Admin:   NewAdminHandler(admin.NewStatusBoard(dir, 10), admin.NewReviewer(dir), dir, admin.NewStudents(dir), admin.NewForms(dir)),
		Courses: NewCourseHandler(dir),
		WS:      NewWSHandler(service, nil),
	}, []string{"*"})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, service
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, method, url, body string) (int, response) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return resp.StatusCode, out
}

type viewData struct {
	ID   string `json:"id"`
	Quiz *struct {
		Stage        string               `json:"stage"`
		Registration *domain.Registration `json:"registration"`
	} `json:"quiz"`
	Wizard *struct {
		Step    string                `json:"step"`
		Payment *domain.PaymentRecord `json:"payment"`
	} `json:"wizard"`
	Question *domain.Question `json:"question"`
}

func decodeView(t *testing.T, r response) viewData {
	t.Helper()
	var v viewData
	if err := json.Unmarshal(r.Data, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	status, body := call(t, http.MethodGet, server.URL+"/healthz", "")
	if status != http.StatusOK || !body.Success {
		t.Fatalf("unexpected health response %d %+v", status, body)
	}
}

func TestGuestQuizOverREST(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := call(t, http.MethodPost, server.URL+"/v1/flows/quiz", `{"variant":"guest"}`)
	if status != http.StatusCreated {
		t.Fatalf("start: %d %s", status, body.Message)
	}
	id := decodeView(t, body).ID
	events := server.URL + "/v1/flows/" + id + "/events"

	status, body = call(t, http.MethodPost, events, `{"type":"begin","payload":{"registration":{"name":"Jordan","email":"nope","phone":"0400","password":"secret1","agreed":true}}}`)
	if status != http.StatusUnprocessableEntity || body.Success || body.Message != validation.MsgEmailInvalid {
		t.Fatalf("expected field error, got %d %+v", status, body)
	}
	var fields []validation.FieldError
	if err := json.Unmarshal(body.Data, &fields); err != nil || len(fields) != 1 || fields[0].Field != "email" {
		t.Fatalf("unexpected fields %s", body.Data)
	}

	status, body = call(t, http.MethodPost, events, `{"type":"begin","payload":{"registration":{"name":"Jordan","email":"j@example.com","phone":"0400","password":"secret1","agreed":true}}}`)
	if status != http.StatusOK {
		t.Fatalf("begin: %d %s", status, body.Message)
	}
	view := decodeView(t, body)
	if view.Quiz.Stage != "quiz" || view.Question == nil {
		t.Fatalf("expected first question, got %+v", view)
	}
	if view.Question.Correct != "" || view.Quiz.Registration.Password != "" {
		t.Fatalf("response leaked a secret: %+v", view)
	}

	status, body = call(t, http.MethodPost, events, `{"type":"declare","payload":{"declaration":{"honest":true}}}`)
	if status != http.StatusConflict {
		t.Fatalf("declare during quiz should conflict, got %d %s", status, body.Message)
	}

	status, body = call(t, http.MethodPost, server.URL+"/v1/flows/"+id+"/cancel", "")
	if status != http.StatusOK || decodeView(t, body).Quiz.Stage != "cancelled" {
		t.Fatalf("cancel: %d %s", status, body.Message)
	}

	call(t, http.MethodDelete, server.URL+"/v1/flows/"+id, "")
	if status, _ := call(t, http.MethodGet, server.URL+"/v1/flows/"+id, ""); status != http.StatusNotFound {
		t.Fatalf("released flow should be gone, got %d", status)
	}
}

func TestStudentQuizRequiresStudent(t *testing.T) {
	server, _ := newTestServer(t)
	status, _ := call(t, http.MethodPost, server.URL+"/v1/flows/quiz", `{"variant":"student"}`)
	if status != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", status)
	}
	status, _ = call(t, http.MethodPost, server.URL+"/v1/flows/quiz", `{not json`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", status)
	}
}

func TestCatalogHidesAnswers(t *testing.T) {
	server, _ := newTestServer(t)
	status, body := call(t, http.MethodGet, server.URL+"/v1/catalog", "")
	if status != http.StatusOK {
		t.Fatalf("catalog: %d", status)
	}
	var c domain.Catalog
	if err := json.Unmarshal(body.Data, &c); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(c.Sections) != len(catalog.Default().Sections) {
		t.Fatalf("unexpected sections %d", len(c.Sections))
	}
	for _, s := range c.Sections {
		for _, q := range s.Questions {
			if q.Correct != "" {
				t.Fatalf("question %s exposes its answer", q.ID)
			}
			for _, p := range q.Parts {
				if p.Correct != "" {
					t.Fatalf("question %s exposes a part answer", q.ID)
				}
			}
		}
	}
}

func TestWizardPaymentProofUpload(t *testing.T) {
	server, _ := newTestServer(t)

	_, body := call(t, http.MethodPost, server.URL+"/v1/flows/wizard", "")
	id := decodeView(t, body).ID
	events := server.URL + "/v1/flows/" + id + "/events"
	call(t, http.MethodPost, events, `{"type":"register","payload":{"registration":{"name":"Jordan Lee","email":"j@example.com","phone":"0400","password":"secret1","agreed":true}}}`)
	if status, body := call(t, http.MethodPost, events, `{"type":"selectCourse","payload":{"course":{"courseId":"c1","courseDateId":"d1","fee":450}}}`); status != http.StatusOK {
		t.Fatalf("select course: %d %s", status, body.Message)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("transactionId", "BANK-7")
	_ = mw.WriteField("amount", "450")
	part, _ := mw.CreateFormFile("receipt", "receipt.pdf")
	_, _ = part.Write([]byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))
	_ = mw.Close()

	resp, err := http.Post(server.URL+"/v1/flows/"+id+"/payment-proof", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: %d %s", resp.StatusCode, out.Message)
	}
	view := decodeView(t, out)
	if view.Wizard.Step != "assessment" || view.Wizard.Payment.ReceiptRef != "proof-1" || view.Question == nil {
		t.Fatalf("unexpected wizard %+v", view.Wizard)
	}
}

func TestAdminRoutes(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := call(t, http.MethodGet, server.URL+"/v1/admin/students?page=1&status=active", "")
	if status != http.StatusOK {
		t.Fatalf("students: %d %s", status, body.Message)
	}
	var board admin.Board
	if err := json.Unmarshal(body.Data, &board); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if len(board.Rows) != 1 || board.Rows[0].Quiz != domain.StatusCompleted || board.Rows[0].Enrollment != domain.StatusNotCompleted {
		t.Fatalf("unexpected board %+v", board)
	}

	if status, _ := call(t, http.MethodGet, server.URL+"/v1/admin/students?status=archived", ""); status != http.StatusBadRequest {
		t.Fatalf("expected bad status filter rejected, got %d", status)
	}

	status, body = call(t, http.MethodPatch, server.URL+"/v1/admin/enrollment-forms/f1/review", `{"status":"rejected"}`)
	if status != http.StatusUnprocessableEntity || body.Message != admin.MsgRejectionNotes {
		t.Fatalf("expected notes required, got %d %s", status, body.Message)
	}
	status, _ = call(t, http.MethodPatch, server.URL+"/v1/admin/enrollment-forms/f1/review", `{"status":"approved"}`)
	if status != http.StatusOK {
		t.Fatalf("approve: %d", status)
	}

	if status, _ := call(t, http.MethodGet, server.URL+"/v1/admin/overview", ""); status != http.StatusOK {
		t.Fatalf("overview: %d", status)
	}
}

func TestCourseLookups(t *testing.T) {
	server, _ := newTestServer(t)
	if status, _ := call(t, http.MethodGet, server.URL+"/v1/courses", ""); status != http.StatusOK {
		t.Fatalf("courses: %d", status)
	}
	status, body := call(t, http.MethodGet, server.URL+"/v1/courses/zz/dates", "")
	if status != http.StatusNotFound || body.Message != "Course not found" {
		t.Fatalf("expected upstream 404 relayed, got %d %s", status, body.Message)
	}
}

func TestAdminStudentRoutes(t *testing.T) {
	server, _ := newTestServer(t)
	students := server.URL + "/v1/admin/students"

	status, body := call(t, http.MethodGet, students+"/s1", "")
	if status != http.StatusOK {
		t.Fatalf("student detail: %d %s", status, body.Message)
	}
	var detail admin.StudentDetail
	if err := json.Unmarshal(body.Data, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Student.ID != "s1" || !detail.Eligibility.CanEnroll || !detail.Quiz.Completed || len(detail.Attempts) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if status, body := call(t, http.MethodGet, students+"/missing", ""); status != http.StatusNotFound || body.Message != "Student not found" {
		t.Fatalf("expected missing student relayed, got %d %s", status, body.Message)
	}

	status, body = call(t, http.MethodPost, students, `{"name":"Sam","email":"sam@example.com"}`)
	if status != http.StatusUnprocessableEntity || body.Message != admin.MsgPasswordRequired {
		t.Fatalf("expected password required on create, got %d %s", status, body.Message)
	}
	if status, body := call(t, http.MethodPost, students, `{"name":"Sam","email":"Sam@Example.com","password":"secret1"}`); status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body.Message)
	}
	if status, body := call(t, http.MethodPut, students+"/s1", `{"name":"Sam Lee","email":"sam@example.com"}`); status != http.StatusOK {
		t.Fatalf("update without password: %d %s", status, body.Message)
	}
	if status, _ := call(t, http.MethodPut, students+"/s1", `{"name":" ","email":"nope"}`); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected invalid update rejected, got %d", status)
	}
	if status, _ := call(t, http.MethodPatch, students+"/s1/toggle-status", ""); status != http.StatusOK {
		t.Fatalf("toggle: %d", status)
	}
	if status, _ := call(t, http.MethodDelete, students+"/s1", ""); status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}

	if status, _ := call(t, http.MethodGet, server.URL+"/v1/admin/attempts?studentId=s1&passed=true", ""); status != http.StatusOK {
		t.Fatalf("attempts: %d", status)
	}
	if status, _ := call(t, http.MethodGet, server.URL+"/v1/admin/attempts?passed=maybe", ""); status != http.StatusBadRequest {
		t.Fatalf("expected bad passed filter rejected, got %d", status)
	}
	if status, _ := call(t, http.MethodGet, server.URL+"/v1/admin/attempts/att-1", ""); status != http.StatusOK {
		t.Fatalf("attempt: %d", status)
	}

	enrollments := server.URL + "/v1/admin/enrollments"
	if status, body := call(t, http.MethodPost, enrollments, `{"studentId":"s1","courseId":"c1"}`); status != http.StatusUnprocessableEntity || body.Message != "Please select a course date" {
		t.Fatalf("expected missing date rejected, got %d %s", status, body.Message)
	}
	if status, _ := call(t, http.MethodPost, enrollments, `{"studentId":"s1","courseId":"c1","courseDateId":"d1"}`); status != http.StatusCreated {
		t.Fatalf("enroll: %d", status)
	}
	if status, _ := call(t, http.MethodPatch, enrollments+"/enr-9/cancel", ""); status != http.StatusOK {
		t.Fatalf("cancel enrollment: %d", status)
	}
}

func TestAdminFormRoutes(t *testing.T) {
	server, _ := newTestServer(t)
	forms := server.URL + "/v1/admin/enrollment-forms"

	if status, _ := call(t, http.MethodGet, forms+"?status=pending&sortBy=submittedAt&sortOrder=desc", ""); status != http.StatusOK {
		t.Fatalf("forms: %d", status)
	}
	if status, _ := call(t, http.MethodGet, forms+"?sortOrder=sideways", ""); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected bad sort order rejected, got %d", status)
	}
	if status, _ := call(t, http.MethodGet, forms+"/f1", ""); status != http.StatusOK {
		t.Fatalf("form: %d", status)
	}
	status, body := call(t, http.MethodPost, forms, `{"form":{}}`)
	if status != http.StatusUnprocessableEntity || body.Message != "Please choose a student" {
		t.Fatalf("expected incomplete form rejected, got %d %s", status, body.Message)
	}

	upload := func(docType, filename string, data []byte) int {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("documentType", docType)
		part, _ := mw.CreateFormFile("file", filename)
		_, _ = part.Write(data)
		_ = mw.Close()
		resp, err := http.Post(forms+"/f1/documents", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if status := upload("id", "licence.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")); status != http.StatusCreated {
		t.Fatalf("upload: %d", status)
	}
	if status := upload("id", "licence.txt", []byte("plain text")); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected text file rejected, got %d", status)
	}

	resp, err := http.Get(forms + "/f1/pdf")
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if status, _ := call(t, http.MethodGet, forms+"/f1/docx", ""); status != http.StatusNotFound {
		t.Fatalf("expected unknown format unrouted, got %d", status)
	}
}
