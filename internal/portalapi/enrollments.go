package portalapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/imroc/req/v3"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/validation"
)

// CourseOption is one entry of the course dropdown.
type CourseOption struct {
	ID   string  `json:"id"`
	Code string  `json:"code,omitempty"`
	Name string  `json:"name"`
	Fee  float64 `json:"fee"`
}

// CourseDateOption is one intake of a course.
type CourseDateOption struct {
	ID        string `json:"id"`
	CourseID  string `json:"courseId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	Seats     int    `json:"seatsAvailable"`
}

type EnrollmentInput struct {
	StudentID    string `json:"studentId" validate:"notblank"`
	CourseID     string `json:"courseId" validate:"notblank"`
	CourseDateID string `json:"courseDateId" validate:"notblank"`
}

type Enrollment struct {
	ID           string `json:"id"`
	StudentID    string `json:"studentId"`
	CourseID     string `json:"courseId"`
	CourseDateID string `json:"courseDateId"`
	Status       string `json:"status"`
}

// PaymentProofRecord is a stored bank-transfer receipt awaiting verification.
type PaymentProofRecord struct {
	ID            string  `json:"id"`
	EnrollmentID  string  `json:"enrollmentId,omitempty"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
}

// CardPayment is the body of a card charge. It is built, sent and dropped;
// it is never stored.
type CardPayment struct {
	CardholderName string  `json:"cardholderName"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	CourseID       string  `json:"courseId"`
	Amount         float64 `json:"amount"`
	CardNumber     string  `json:"cardNumber"`
	ExpiryMonth    int     `json:"expiryMonth"`
	ExpiryYear     int     `json:"expiryYear"`
	CVV            string  `json:"cvv"`
}

type CardPaymentResult struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// NewCardPayment builds a charge for card. card must already be valid.
func NewCardPayment(reg domain.Registration, course domain.CourseSelection, card validation.Card) (CardPayment, error) {
	month, year, err := validation.ParseExpiry(card.Expiry)
	if err != nil {
		return CardPayment{}, err
	}
	digits, _ := validation.CardDigits(card.Number)
	return CardPayment{
		CardholderName: strings.TrimSpace(card.Holder),
		Email:          reg.Email,
		Phone:          reg.Phone,
		CourseID:       course.CourseID,
		Amount:         course.Fee,
		CardNumber:     digits,
		ExpiryMonth:    month,
		ExpiryYear:     year,
		CVV:            strings.TrimSpace(card.CVV),
	}, nil
}

func (c *Client) Courses(ctx context.Context) ([]CourseOption, error) {
	var out []CourseOption
	err := c.get(ctx, "/courses/dropdown", &out, nil)
	return out, err
}

func (c *Client) CourseDates(ctx context.Context, courseID string) ([]CourseDateOption, error) {
	var out []CourseDateOption
	err := c.get(ctx, "/courses/"+url.PathEscape(courseID)+"/dates/dropdown", &out, nil)
	return out, err
}

func (c *Client) CreateEnrollment(ctx context.Context, in EnrollmentInput) (Enrollment, error) {
	var out Enrollment
	err := c.send(ctx, http.MethodPost, "/enrollments", &out, withBody(in))
	return out, err
}

func (c *Client) CancelEnrollment(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodPatch, "/enrollments/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// SubmitPaymentProof uploads a receipt. enrollmentID is empty for wizard
// runs, where the enrollment does not exist yet.
func (c *Client) SubmitPaymentProof(ctx context.Context, enrollmentID string, proof validation.PaymentProof) (PaymentProofRecord, error) {
	if err := validation.PaymentProofForm(proof); err != nil {
		return PaymentProofRecord{}, err
	}
	var out PaymentProofRecord
	err := c.send(ctx, http.MethodPost, "/payments/proof", &out, func(r *req.Request) {
		fields := map[string]string{
			"transactionId": strings.TrimSpace(proof.TransactionID),
			"amount":        strconv.FormatFloat(proof.Amount, 'f', 2, 64),
		}
		if enrollmentID != "" {
			fields["enrollmentId"] = enrollmentID
		}
		r.SetFormData(fields)
		r.SetFileBytes("receipt", proof.Receipt.Filename, proof.Receipt.Data)
	})
	return out, err
}

func (c *Client) ProcessCardPayment(ctx context.Context, payment CardPayment) (CardPaymentResult, error) {
	var out CardPaymentResult
	err := c.send(ctx, http.MethodPost, "/payments/card", &out, withBody(payment))
	return out, err
}

// SubmitEnrollment sends the wizard's combined payload. The portal API creates
// the account, student, enrollment, attempt and form atomically.
func (c *Client) SubmitEnrollment(ctx context.Context, sub domain.EnrollmentSubmission) (domain.EnrollmentOutcome, error) {
	var out domain.EnrollmentOutcome
	err := c.send(ctx, http.MethodPost, "/public/enrollments", &out, withBody(sub))
	return out, err
}
