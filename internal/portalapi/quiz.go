package portalapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/imroc/req/v3"

	"llnd-portal/internal/domain"
)

// QuizStatus summarises a student's latest attempt.
type QuizStatus struct {
	StudentID       string `json:"studentId"`
	Completed       bool   `json:"completed"`
	Passed          bool   `json:"passed"`
	LatestAttemptID string `json:"latestAttemptId,omitempty"`
	Percentage      int    `json:"percentage"`
}

// Attempt is a stored quiz attempt.
type Attempt struct {
	ID              string                 `json:"id"`
	StudentID       string                 `json:"studentId"`
	CatalogVersion  string                 `json:"catalogVersion"`
	Totals          domain.Totals          `json:"totals"`
	Sections        []domain.SectionResult `json:"sections"`
	DeclarationName string                 `json:"declarationName"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// AttemptFilter narrows ListAttempts.
type AttemptFilter struct {
	StudentID string
	Passed    *bool
	Page      int
	Limit     int
}

// Eligibility tells whether a student may enroll.
type Eligibility struct {
	StudentID string `json:"studentId"`
	Passed    bool   `json:"passed"`
	CanEnroll bool   `json:"canEnroll"`
	Reason    string `json:"reason,omitempty"`
}

// SubmitAttempt records an authenticated student's attempt.
func (c *Client) SubmitAttempt(ctx context.Context, sub domain.QuizSubmission) (domain.AttemptOutcome, error) {
	var out domain.AttemptOutcome
	err := c.send(ctx, http.MethodPost, "/quiz/attempts", &out, withBody(sub))
	return out, err
}

// SubmitGuestAttempt creates the guest's account and student record and stores the attempt.
func (c *Client) SubmitGuestAttempt(ctx context.Context, sub domain.GuestQuizSubmission) (domain.AttemptOutcome, error) {
	var out domain.AttemptOutcome
	err := c.send(ctx, http.MethodPost, "/public/quiz/attempts", &out, withBody(sub))
	return out, err
}

func (c *Client) QuizStatus(ctx context.Context, studentID string) (QuizStatus, error) {
	var out QuizStatus
	err := c.get(ctx, "/quiz/status/"+url.PathEscape(studentID), &out, nil)
	return out, err
}

func (c *Client) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	var out Attempt
	err := c.get(ctx, "/quiz/attempts/"+url.PathEscape(id), &out, nil)
	return out, err
}

func (c *Client) ListAttempts(ctx context.Context, f AttemptFilter) (Page[Attempt], error) {
	var out Page[Attempt]
	err := c.get(ctx, "/quiz/attempts", &out, func(r *req.Request) {
		setPaging(r, f.Page, f.Limit)
		if f.StudentID != "" {
			r.SetQueryParam("studentId", f.StudentID)
		}
		if f.Passed != nil {
			r.SetQueryParam("passed", strconv.FormatBool(*f.Passed))
		}
	})
	return out, err
}

func (c *Client) Eligibility(ctx context.Context, studentID string) (Eligibility, error) {
	var out Eligibility
	err := c.get(ctx, "/quiz/eligibility/"+url.PathEscape(studentID), &out, nil)
	return out, err
}

func setPaging(r *req.Request, page, limit int) {
	if page > 0 {
		r.SetQueryParam("page", strconv.Itoa(page))
	}
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}
}
