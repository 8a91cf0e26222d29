package admin

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/validation"
)

// StudentAPI is the part of the portal API behind the student detail and
// management screens.
type StudentAPI interface {
	GetStudent(ctx context.Context, id string) (portalapi.Student, error)
	CreateStudent(ctx context.Context, in portalapi.StudentInput) (portalapi.Student, error)
	UpdateStudent(ctx context.Context, id string, in portalapi.StudentInput) (portalapi.Student, error)
	DeleteStudent(ctx context.Context, id string) error
	ToggleStudentStatus(ctx context.Context, id string) (portalapi.Student, error)
	QuizStatus(ctx context.Context, studentID string) (portalapi.QuizStatus, error)
	Eligibility(ctx context.Context, studentID string) (portalapi.Eligibility, error)
	EnrollmentStatus(ctx context.Context, studentID string) (portalapi.EnrollmentStatus, error)
	GetAttempt(ctx context.Context, id string) (portalapi.Attempt, error)
	ListAttempts(ctx context.Context, f portalapi.AttemptFilter) (portalapi.Page[portalapi.Attempt], error)
	CreateEnrollment(ctx context.Context, in portalapi.EnrollmentInput) (portalapi.Enrollment, error)
	CancelEnrollment(ctx context.Context, id string) error
}

// StudentDetail is everything the student page shows at once.
type StudentDetail struct {
	Student     portalapi.Student          `json:"student"`
	Quiz        portalapi.QuizStatus       `json:"quiz"`
	Eligibility portalapi.Eligibility      `json:"eligibility"`
	Enrollment  portalapi.EnrollmentStatus `json:"enrollment"`
	Attempts    []portalapi.Attempt        `json:"attempts"`
}

const (
	MsgPasswordRequired = "Password is required for new students"
	detailAttempts      = 5
)

var (
	studentMessages = validation.Messages{
		"name":              "Name is required",
		"email":             validation.MsgEmailInvalid,
		"password":          "Password must be at least {param} characters",
		"password:required": MsgPasswordRequired,
	}
	enrollmentMessages = validation.Messages{
		"studentId":    "Please choose a student",
		"courseId":     "Please select a course",
		"courseDateId": "Please select a course date",
	}
)

type Students struct {
	api StudentAPI
}

func NewStudents(api StudentAPI) *Students {
	return &Students{api: api}
}

// Detail loads a student with their quiz, eligibility and enrollment state
// and latest attempts. Any lookup failure fails the page.
func (s *Students) Detail(ctx context.Context, id string) (StudentDetail, error) {
	var out StudentDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Student, err = s.api.GetStudent(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		out.Quiz, err = s.api.QuizStatus(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		out.Eligibility, err = s.api.Eligibility(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		out.Enrollment, err = s.api.EnrollmentStatus(gctx, id)
		return err
	})
	g.Go(func() error {
		page, err := s.api.ListAttempts(gctx, portalapi.AttemptFilter{StudentID: id, Page: 1, Limit: detailAttempts})
		out.Attempts = page.Items
		return err
	})
	if err := g.Wait(); err != nil {
		return StudentDetail{}, err
	}
	return out, nil
}

func normalizeStudent(in portalapi.StudentInput) portalapi.StudentInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// ValidateStudent checks a create or update body. Only creation needs a password.
func ValidateStudent(in portalapi.StudentInput, creating bool) error {
	var c validation.Collector
	c.Struct(context.Background(), normalizeStudent(in), studentMessages)
	if creating {
		c.Var(context.Background(), "password", in.Password, "required", studentMessages)
	}
	return c.Err()
}

func (s *Students) Create(ctx context.Context, in portalapi.StudentInput) (portalapi.Student, error) {
	if err := ValidateStudent(in, true); err != nil {
		return portalapi.Student{}, err
	}
	return s.api.CreateStudent(ctx, normalizeStudent(in))
}

// Update saves a student's details. An empty password keeps the current one.
func (s *Students) Update(ctx context.Context, id string, in portalapi.StudentInput) (portalapi.Student, error) {
	if err := ValidateStudent(in, false); err != nil {
		return portalapi.Student{}, err
	}
	return s.api.UpdateStudent(ctx, id, normalizeStudent(in))
}

func (s *Students) Delete(ctx context.Context, id string) error {
	return s.api.DeleteStudent(ctx, id)
}

func (s *Students) ToggleStatus(ctx context.Context, id string) (portalapi.Student, error) {
	return s.api.ToggleStudentStatus(ctx, id)
}

func (s *Students) Attempts(ctx context.Context, f portalapi.AttemptFilter) (portalapi.Page[portalapi.Attempt], error) {
	return s.api.ListAttempts(ctx, f)
}

func (s *Students) Attempt(ctx context.Context, id string) (portalapi.Attempt, error) {
	return s.api.GetAttempt(ctx, id)
}

// Enroll books a student into a course intake on their behalf.
func (s *Students) Enroll(ctx context.Context, in portalapi.EnrollmentInput) (portalapi.Enrollment, error) {
	var c validation.Collector
	c.Struct(ctx, in, enrollmentMessages)
	if err := c.Err(); err != nil {
		return portalapi.Enrollment{}, err
	}
	return s.api.CreateEnrollment(ctx, in)
}

func (s *Students) CancelEnrollment(ctx context.Context, id string) error {
	return s.api.CancelEnrollment(ctx, id)
}
