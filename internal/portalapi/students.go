package portalapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/imroc/req/v3"
)

// StudentActivity filters the student list by account state.
type StudentActivity string

const (
	StudentsAll      StudentActivity = ""
	StudentsActive   StudentActivity = "active"
	StudentsInactive StudentActivity = "inactive"
)

type Student struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// StudentInput is the body for create and update.
type StudentInput struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
}

type StudentFilter struct {
	Page   int
	Limit  int
	Search string
	Status StudentActivity
}

type StudentStats struct {
	Total               int `json:"total"`
	Active              int `json:"active"`
	Inactive            int `json:"inactive"`
	QuizCompleted       int `json:"quizCompleted"`
	EnrollmentCompleted int `json:"enrollmentCompleted"`
}

func studentPath(id string) string {
	return "/students/" + url.PathEscape(id)
}

func (c *Client) ListStudents(ctx context.Context, f StudentFilter) (Page[Student], error) {
	var out Page[Student]
	err := c.get(ctx, "/students", &out, func(r *req.Request) {
		setPaging(r, f.Page, f.Limit)
		if f.Search != "" {
			r.SetQueryParam("search", f.Search)
		}
		if f.Status != StudentsAll {
			r.SetQueryParam("status", string(f.Status))
		}
	})
	return out, err
}

func (c *Client) GetStudent(ctx context.Context, id string) (Student, error) {
	var out Student
	err := c.get(ctx, studentPath(id), &out, nil)
	return out, err
}

func (c *Client) CreateStudent(ctx context.Context, in StudentInput) (Student, error) {
	var out Student
	err := c.send(ctx, http.MethodPost, "/students", &out, withBody(in))
	return out, err
}

func (c *Client) UpdateStudent(ctx context.Context, id string, in StudentInput) (Student, error) {
	var out Student
	err := c.send(ctx, http.MethodPut, studentPath(id), &out, withBody(in))
	return out, err
}

func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, studentPath(id), nil, nil)
}

// ToggleStudentStatus flips a student between active and inactive.
func (c *Client) ToggleStudentStatus(ctx context.Context, id string) (Student, error) {
	var out Student
	err := c.send(ctx, http.MethodPatch, studentPath(id)+"/toggle-status", &out, nil)
	return out, err
}

func (c *Client) StudentStats(ctx context.Context) (StudentStats, error) {
	var out StudentStats
	err := c.get(ctx, "/students/stats", &out, nil)
	return out, err
}
