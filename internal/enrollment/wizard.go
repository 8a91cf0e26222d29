// Package enrollment implements the public enrollment wizard: registration,
// course selection, payment, the LLND assessment and the enrollment form,
// finished by one combined submission to the portal API.
package enrollment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/quiz"
	"llnd-portal/internal/validation"
)

// Step is the wizard screen currently shown.
type Step string

const (
	StepRegistration Step = "registration"
	StepCourse       Step = "course"
	StepPayment      Step = "payment"
	StepAssessment   Step = "assessment"
	StepForm         Step = "form"
	StepSubmitted    Step = "submitted"
	StepCancelled    Step = "cancelled"
)

const (
	MsgCourseRequired     = "Please select a course"
	MsgCourseDateRequired = "Please select a start date"
	MsgReceiptRequired    = "Please upload your payment receipt"
	MsgAmountMismatch     = "Amount must match the course fee"

	MsgCourseUnavailable     = "This course is not available for enrollment"
	MsgCourseDateUnavailable = "Please choose one of the listed start dates"
)

var courseMessages = validation.Messages{
	"courseId":     MsgCourseRequired,
	"courseDateId": MsgCourseDateRequired,
}

// Number is the 1-based position shown in the progress bar; 0 for terminal steps.
func (s Step) Number() int {
	switch s {
	case StepRegistration:
		return 1
	case StepCourse:
		return 2
	case StepPayment:
		return 3
	case StepAssessment:
		return 4
	case StepForm:
		return 5
	}
	return 0
}

// State is the full, serializable state of one wizard run.
type State struct {
	Step         Step                      `json:"step"`
	Registration *domain.Registration      `json:"registration,omitempty"`
	Course       *domain.CourseSelection   `json:"course,omitempty"`
	Payment      *domain.PaymentRecord     `json:"payment,omitempty"`
	Card         *validation.MaskedCard    `json:"card,omitempty"`
	Quiz         *quiz.State               `json:"quiz,omitempty"`
	Form         *domain.EnrollmentForm    `json:"form,omitempty"`
	Paying       bool                      `json:"paying"`
	PaymentError string                    `json:"paymentError,omitempty"`
	Submitting   bool                      `json:"submitting"`
	SubmitError  string                    `json:"submitError,omitempty"`
	Outcome      *domain.EnrollmentOutcome `json:"outcome,omitempty"`
}

// NewState opens a wizard on the registration step.
func NewState() State {
	return State{Step: StepRegistration}
}

// Closed reports whether the wizard accepts no further events.
func (s State) Closed() bool {
	return s.Step == StepSubmitted || s.Step == StepCancelled
}

// Public returns a copy safe to hand to clients.
func (s State) Public() State {
	out := s.clone()
	if out.Registration != nil {
		out.Registration.Password = ""
	}
	if out.Quiz != nil {
		q := out.Quiz.Public()
		out.Quiz = &q
	}
	return out
}

func (s State) clone() State {
	out := s
	if s.Registration != nil {
		cp := *s.Registration
		out.Registration = &cp
	}
	if s.Course != nil {
		cp := *s.Course
		out.Course = &cp
	}
	if s.Payment != nil {
		cp := *s.Payment
		out.Payment = &cp
	}
	if s.Card != nil {
		cp := *s.Card
		out.Card = &cp
	}
	if s.Quiz != nil {
		// quiz.Transition never mutates its input, so sharing nested slices is safe.
		cp := *s.Quiz
		out.Quiz = &cp
	}
	if s.Form != nil {
		cp := *s.Form
		out.Form = &cp
	}
	if s.Outcome != nil {
		cp := *s.Outcome
		out.Outcome = &cp
	}
	return out
}

// Event is an input to Transition.
type Event interface {
	eventName() string
}

type (
	Register struct {
		Registration domain.Registration `json:"registration"`
	}
	SelectCourse struct {
		Course domain.CourseSelection `json:"course"`
	}
	// PaymentStarted marks a charge or receipt upload in flight; PayByCard,
	// PayByProof or PaymentFailed settle it.
	PaymentStarted struct{}
	PaymentFailed  struct {
		Message string `json:"message"`
	}
	// PayByCard carries the raw card; only masked metadata survives the transition.
	PayByCard struct {
		Card          validation.Card `json:"card"`
		TransactionID string          `json:"transactionId,omitempty"`
	}
	// PayByProof records a receipt that has already been validated and stored.
	PayByProof struct {
		TransactionID string  `json:"transactionId"`
		Amount        float64 `json:"amount"`
		ReceiptRef    string  `json:"receiptRef"`
	}
	// QuizEvent forwards an assessment event to the embedded quiz.
	QuizEvent struct {
		Event quiz.Event `json:"-"`
	}
	CompleteForm struct {
		Form domain.EnrollmentForm `json:"form"`
	}
	Back            struct{}
	SubmitStarted   struct{}
	SubmitSucceeded struct {
		Outcome domain.EnrollmentOutcome `json:"outcome"`
	}
	SubmitFailed struct {
		Message string `json:"message"`
	}
	Cancel struct{}
)

func (Register) eventName() string        { return "register" }
func (SelectCourse) eventName() string    { return "selectCourse" }
func (PayByCard) eventName() string       { return "payByCard" }
func (PayByProof) eventName() string      { return "payByProof" }
func (PaymentStarted) eventName() string  { return "paymentStarted" }
func (PaymentFailed) eventName() string   { return "paymentFailed" }
func (e QuizEvent) eventName() string     { return "quiz." + quiz.EventName(e.Event) }
func (CompleteForm) eventName() string    { return "completeForm" }
func (Back) eventName() string            { return "back" }
func (SubmitStarted) eventName() string   { return "submitStarted" }
func (SubmitSucceeded) eventName() string { return "submitSucceeded" }
func (SubmitFailed) eventName() string    { return "submitFailed" }
func (Cancel) eventName() string          { return "cancel" }

// EventName is the wire name of e.
func EventName(e Event) string {
	return e.eventName()
}

func invalid(s State, e Event) error {
	return fmt.Errorf("%w: %s during %s", domain.ErrInvalidTransition, e.eventName(), s.Step)
}

// ValidateCourse checks the course step.
func ValidateCourse(c domain.CourseSelection) error {
	var col validation.Collector
	col.Struct(context.Background(), c, courseMessages)
	return col.Err()
}

// ValidateCard checks card fields and that the course fee is payable.
func ValidateCard(s State, card validation.Card, now time.Time) error {
	var col validation.Collector
	col.Merge(validation.CardDetails(card, now))
	if s.Course != nil {
		col.Merge(validation.Amount(s.Course.Fee))
	}
	return col.Err()
}

// UsesCatalog reports whether Transition reads catalog content for e.
func UsesCatalog(e Event) bool {
	switch e.(type) {
	case PayByCard, PayByProof, QuizEvent:
		return true
	}
	return false
}

// ValidateProof checks a bank-transfer receipt's fields and that the amount
// paid is the course fee.
func ValidateProof(s State, transactionID string, amount float64) error {
	var col validation.Collector
	col.Merge(validation.ProofDetails(validation.PaymentProof{TransactionID: transactionID, Amount: amount}))
	if s.Course != nil && amount > 0 {
		col.Check(math.Abs(amount-s.Course.Fee) < 0.005, "amount", MsgAmountMismatch)
	}
	return col.Err()
}

// Transition applies e to s and returns the next state. s is never modified;
// on error the returned state equals s. now is the clock used for card expiry
// and form date checks.
func Transition(catalog domain.Catalog, s State, e Event, now time.Time) (State, error) {
	if s.Closed() {
		return s, domain.ErrFlowClosed
	}
	next := s.clone()

	switch ev := e.(type) {
	case Cancel:
		if s.Submitting || s.Paying {
			return s, domain.ErrSubmissionPending
		}
		next.Step = StepCancelled
		return next, nil

	case Back:
		if s.Paying {
			return s, domain.ErrSubmissionPending
		}
		switch s.Step {
		case StepCourse:
			next.Step = StepRegistration
		case StepPayment:
			next.Step = StepCourse
		default:
			return s, invalid(s, e)
		}
		return next, nil

	case Register:
		if s.Step != StepRegistration {
			return s, invalid(s, e)
		}
		if err := validation.Registration(ev.Registration); err != nil {
			return s, err
		}
		reg := ev.Registration
		next.Registration = &reg
		next.Step = StepCourse
		return next, nil

	case SelectCourse:
		if s.Step != StepCourse {
			return s, invalid(s, e)
		}
		if err := ValidateCourse(ev.Course); err != nil {
			return s, err
		}
		course := ev.Course
		next.Course = &course
		next.Step = StepPayment
		return next, nil

	case PaymentStarted:
		if s.Step != StepPayment || s.Course == nil || s.Registration == nil {
			return s, invalid(s, e)
		}
		if s.Paying {
			return s, domain.ErrSubmissionPending
		}
		next.Paying = true
		next.PaymentError = ""
		return next, nil

	case PaymentFailed:
		if s.Step != StepPayment || !s.Paying {
			return s, invalid(s, e)
		}
		next.Paying = false
		next.PaymentError = ev.Message
		return next, nil

	case PayByCard:
		if s.Step != StepPayment || s.Course == nil || !s.Paying {
			return s, invalid(s, e)
		}
		if err := ValidateCard(s, ev.Card, now); err != nil {
			return s, err
		}
		masked := validation.Mask(ev.Card)
		next.Paying = false
		next.Card = &masked
		next.Payment = &domain.PaymentRecord{
			Method:        domain.PaymentCard,
			Amount:        s.Course.Fee,
			TransactionID: ev.TransactionID,
			CardBrand:     string(masked.Brand),
			CardLastFour:  masked.LastFour,
			Status:        paymentStatus(ev.TransactionID),
		}
		if err := next.startAssessment(catalog); err != nil {
			return s, err
		}
		return next, nil

	case PayByProof:
		if s.Step != StepPayment || s.Course == nil || !s.Paying {
			return s, invalid(s, e)
		}
		var col validation.Collector
		col.Merge(ValidateProof(s, ev.TransactionID, ev.Amount))
		col.Check(strings.TrimSpace(ev.ReceiptRef) != "", "receipt", MsgReceiptRequired)
		if err := col.Err(); err != nil {
			return s, err
		}
		next.Paying = false
		next.Card = nil
		next.Payment = &domain.PaymentRecord{
			Method:        domain.PaymentProof,
			Amount:        s.Course.Fee,
			TransactionID: strings.TrimSpace(ev.TransactionID),
			ReceiptRef:    ev.ReceiptRef,
			Status:        "pending_verification",
		}
		if err := next.startAssessment(catalog); err != nil {
			return s, err
		}
		return next, nil

	case QuizEvent:
		if s.Step != StepAssessment || s.Quiz == nil {
			return s, invalid(s, e)
		}
		switch ev.Event.(type) {
		case quiz.Cancel, quiz.SubmitStarted, quiz.SubmitSucceeded, quiz.SubmitFailed:
			return s, invalid(s, e)
		}
		q, err := quiz.Transition(catalog, *s.Quiz, ev.Event)
		if err != nil {
			return s, err
		}
		next.Quiz = &q
		if q.Stage == quiz.StageResults {
			next.Step = StepForm
		}
		return next, nil

	case CompleteForm:
		if s.Step != StepForm {
			return s, invalid(s, e)
		}
		if s.Submitting {
			return s, domain.ErrSubmissionPending
		}
		if err := validation.EnrollmentForm(ev.Form, now); err != nil {
			return s, err
		}
		form := ev.Form
		next.Form = &form
		return next, nil

	case SubmitStarted:
		if s.Step != StepForm || s.Form == nil {
			return s, invalid(s, e)
		}
		if s.Submitting {
			return s, domain.ErrSubmissionPending
		}
		next.Submitting = true
		next.SubmitError = ""
		return next, nil

	case SubmitSucceeded:
		if s.Step != StepForm || !s.Submitting {
			return s, invalid(s, e)
		}
		outcome := ev.Outcome
		next.Submitting = false
		next.Outcome = &outcome
		next.Step = StepSubmitted
		return next, nil

	case SubmitFailed:
		if s.Step != StepForm || !s.Submitting {
			return s, invalid(s, e)
		}
		next.Submitting = false
		next.SubmitError = ev.Message
		return next, nil
	}
	return s, fmt.Errorf("%w: unknown event %T", domain.ErrInvalidTransition, e)
}

func paymentStatus(transactionID string) string {
	if transactionID == "" {
		return "pending"
	}
	return "paid"
}

// startAssessment moves to step 4, opening the embedded quiz past its guidelines.
func (s *State) startAssessment(catalog domain.Catalog) error {
	q, err := quiz.Transition(catalog, quiz.NewState(quiz.VariantWizard, catalog, nil), quiz.Begin{Registration: s.Registration})
	if err != nil {
		return err
	}
	s.Quiz = &q
	s.Step = StepAssessment
	return nil
}
