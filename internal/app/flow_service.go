package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/enrollment"
	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/quiz"
	"llnd-portal/internal/validation"
)

// SessionRepository abstracts where flow sessions live (in-memory, Redis).
type SessionRepository interface {
	Put(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, bool)
	DeleteIfClosed(ctx context.Context, id string)
}

// CatalogRepository loads quiz content by version; "" is the current version.
type CatalogRepository interface {
	Catalog(ctx context.Context, version string) (domain.Catalog, error)
}

// Portal is the subset of the portal API the flows submit to.
type Portal interface {
	SubmitAttempt(ctx context.Context, sub domain.QuizSubmission) (domain.AttemptOutcome, error)
	SubmitGuestAttempt(ctx context.Context, sub domain.GuestQuizSubmission) (domain.AttemptOutcome, error)
	SubmitEnrollment(ctx context.Context, sub domain.EnrollmentSubmission) (domain.EnrollmentOutcome, error)
	ProcessCardPayment(ctx context.Context, payment portalapi.CardPayment) (portalapi.CardPaymentResult, error)
	SubmitPaymentProof(ctx context.Context, enrollmentID string, proof validation.PaymentProof) (portalapi.PaymentProofRecord, error)
	Courses(ctx context.Context) ([]portalapi.CourseOption, error)
	CourseDates(ctx context.Context, courseID string) ([]portalapi.CourseDateOption, error)
}

// FlowService contains the quiz and enrollment use cases.
type FlowService struct {
	sessions SessionRepository
	catalogs CatalogRepository
	portal   Portal
	now      func() time.Time
}

func NewFlowService(sessions SessionRepository, catalogs CatalogRepository, portal Portal) *FlowService {
	return &FlowService{sessions: sessions, catalogs: catalogs, portal: portal, now: time.Now}
}

// WithClock replaces the clock used for timestamps, card expiry and form dates.
func (s *FlowService) WithClock(now func() time.Time) *FlowService {
	s.now = now
	return s
}

// Catalog returns the current quiz content.
func (s *FlowService) Catalog(ctx context.Context) (domain.Catalog, error) {
	return s.catalogs.Catalog(ctx, "")
}

// StartQuiz opens a standalone attempt. student is required for the student
// variant and ignored for guests, who register when they begin.
func (s *FlowService) StartQuiz(ctx context.Context, variant quiz.Variant, student *domain.Student) (Snapshot, error) {
	switch variant {
	case quiz.VariantStudent:
		if student == nil || student.ID == "" {
			return Snapshot{}, fmt.Errorf("%w: student attempt without a student", domain.ErrInvalidTransition)
		}
	case quiz.VariantGuest:
		student = nil
	default:
		return Snapshot{}, fmt.Errorf("%w: cannot start a %s attempt directly", domain.ErrInvalidTransition, variant)
	}
	catalog, err := s.catalogs.Catalog(ctx, "")
	if err != nil {
		return Snapshot{}, err
	}
	state := quiz.NewState(variant, catalog, student)
	return s.create(ctx, Snapshot{Kind: FlowQuiz, Quiz: &state})
}

// StartWizard opens an enrollment wizard on its registration step.
func (s *FlowService) StartWizard(ctx context.Context) (Snapshot, error) {
	state := enrollment.NewState()
	return s.create(ctx, Snapshot{Kind: FlowWizard, Wizard: &state})
}

func (s *FlowService) create(ctx context.Context, snap Snapshot) (Snapshot, error) {
	now := s.now()
	snap.ID = uuid.NewString()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	session := NewSessionWithClock(snap, s.now)
	if err := s.sessions.Put(ctx, session); err != nil {
		return Snapshot{}, err
	}
	glog.Infof("flow %s started (%s)", snap.ID, snap.Kind)
	return snap.Public(), nil
}

// Get returns the public snapshot of a flow.
func (s *FlowService) Get(ctx context.Context, id string) (Snapshot, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot().Public(), nil
}

// CurrentQuestion returns the question on screen, if the flow is inside the quiz.
func (s *FlowService) CurrentQuestion(ctx context.Context, snap Snapshot) (domain.Question, bool) {
	q := snap.Quiz
	if snap.Wizard != nil {
		q = snap.Wizard.Quiz
	}
	if q == nil || q.Stage != quiz.StageQuiz {
		return domain.Question{}, false
	}
	catalog, err := s.catalogs.Catalog(ctx, q.CatalogVersion)
	if err != nil {
		return domain.Question{}, false
	}
	return q.CurrentQuestion(catalog)
}

// Apply decodes a client event by wire name and applies it to the flow.
func (s *FlowService) Apply(ctx context.Context, id, name string, payload []byte) (Snapshot, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	switch session.Snapshot().Kind {
	case FlowQuiz:
		ev, err := quiz.DecodeEvent(name, payload)
		if err != nil {
			return Snapshot{}, err
		}
		return s.applyQuiz(ctx, session, ev)
	case FlowWizard:
		ev, err := enrollment.DecodeEvent(name, payload)
		if err != nil {
			return Snapshot{}, err
		}
		switch ev := ev.(type) {
		case enrollment.PayByCard:
			return s.PayByCard(ctx, id, ev.Card)
		case enrollment.PayByProof:
			// the receipt reference only comes from an upload through PayByProof
			return Snapshot{}, fmt.Errorf("%w: payment proof must be uploaded", domain.ErrInvalidTransition)
		case enrollment.SelectCourse:
			if w := session.Snapshot().Wizard; w != nil && w.Step == enrollment.StepCourse {
				course, err := s.resolveCourse(ctx, ev.Course)
				if err != nil {
					return Snapshot{}, err
				}
				ev.Course = course
			}
			return s.applyWizard(ctx, session, ev)
		}
		return s.applyWizard(ctx, session, ev)
	}
	return Snapshot{}, fmt.Errorf("%w: unknown flow kind", domain.ErrInvalidTransition)
}

func (s *FlowService) applyQuiz(ctx context.Context, session *Session, ev quiz.Event) (Snapshot, error) {
	snap, err := session.update(func(cur Snapshot) (Snapshot, error) {
		if cur.Quiz == nil {
			return cur, fmt.Errorf("%w: not a quiz flow", domain.ErrInvalidTransition)
		}
		var catalog domain.Catalog
		if quiz.UsesCatalog(ev) {
			var err error
			if catalog, err = s.catalogs.Catalog(ctx, cur.Quiz.CatalogVersion); err != nil {
				return cur, err
			}
		}
		next, err := quiz.Transition(catalog, *cur.Quiz, ev)
		if err != nil {
			return cur, err
		}
		if next.Stage == quiz.StageSubmitted && next.Registration != nil {
			next.Registration.Password = ""
		}
		cur.Quiz = &next
		return cur, nil
	})
	return s.persist(ctx, session, snap, err)
}

func (s *FlowService) applyWizard(ctx context.Context, session *Session, ev enrollment.Event) (Snapshot, error) {
	snap, err := session.update(func(cur Snapshot) (Snapshot, error) {
		if cur.Wizard == nil {
			return cur, fmt.Errorf("%w: not a wizard flow", domain.ErrInvalidTransition)
		}
		var catalog domain.Catalog
		if enrollment.UsesCatalog(ev) {
			var err error
			if catalog, err = s.wizardCatalog(ctx, *cur.Wizard); err != nil {
				return cur, err
			}
		}
		next, err := enrollment.Transition(catalog, *cur.Wizard, ev, s.now())
		if err != nil {
			return cur, err
		}
		if next.Step == enrollment.StepSubmitted && next.Registration != nil {
			next.Registration.Password = ""
		}
		cur.Wizard = &next
		return cur, nil
	})
	return s.persist(ctx, session, snap, err)
}

func (s *FlowService) wizardCatalog(ctx context.Context, w enrollment.State) (domain.Catalog, error) {
	if w.Quiz != nil {
		return s.catalogs.Catalog(ctx, w.Quiz.CatalogVersion)
	}
	return s.catalogs.Catalog(ctx, "")
}

func (s *FlowService) persist(ctx context.Context, session *Session, snap Snapshot, err error) (Snapshot, error) {
	if err != nil {
		return Snapshot{}, err
	}
	if perr := s.sessions.Put(ctx, session); perr != nil {
		glog.Errorf("persist flow %s: %v", snap.ID, perr)
	}
	return snap.Public(), nil
}

// resolveCourse replaces the client's selection with the portal's own
// dropdown entries, so the fee charged later is the listed one.
func (s *FlowService) resolveCourse(ctx context.Context, sel domain.CourseSelection) (domain.CourseSelection, error) {
	if err := enrollment.ValidateCourse(sel); err != nil {
		return sel, err
	}
	courseID := strings.TrimSpace(sel.CourseID)
	var (
		courses []portalapi.CourseOption
		dates   []portalapi.CourseDateOption
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.portal.Courses(gctx)
		return err
	})
	g.Go(func() (err error) {
		dates, err = s.portal.CourseDates(gctx, courseID)
		if portalapi.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return sel, err
	}

	var col validation.Collector
	out := domain.CourseSelection{CourseID: courseID, CourseDateID: strings.TrimSpace(sel.CourseDateID)}
	courseIdx := slices.IndexFunc(courses, func(c portalapi.CourseOption) bool { return c.ID == out.CourseID })
	if courseIdx < 0 {
		col.Add("courseId", enrollment.MsgCourseUnavailable)
	} else {
		out.CourseName = courses[courseIdx].Name
		out.Fee = courses[courseIdx].Fee
	}
	dateIdx := slices.IndexFunc(dates, func(d portalapi.CourseDateOption) bool { return d.ID == out.CourseDateID })
	if dateIdx < 0 {
		col.Add("courseDateId", enrollment.MsgCourseDateUnavailable)
	} else {
		out.StartDate = dates[dateIdx].StartDate
	}
	if err := col.Err(); err != nil {
		return sel, err
	}
	return out, nil
}

// startPayment marks the payment in flight. Only one charge or upload can be
// pending per wizard; a second caller gets ErrSubmissionPending. check runs
// against the locked state before the flag is set.
func (s *FlowService) startPayment(ctx context.Context, session *Session, check func(enrollment.State) error) (enrollment.State, error) {
	snap, err := session.update(func(cur Snapshot) (Snapshot, error) {
		if cur.Wizard == nil {
			return cur, fmt.Errorf("%w: not a wizard flow", domain.ErrInvalidTransition)
		}
		next, err := enrollment.Transition(domain.Catalog{}, *cur.Wizard, enrollment.PaymentStarted{}, s.now())
		if err != nil {
			return cur, err
		}
		if err := check(*cur.Wizard); err != nil {
			return cur, err
		}
		cur.Wizard = &next
		return cur, nil
	})
	if err != nil {
		return enrollment.State{}, err
	}
	s.persist(ctx, session, snap, nil)
	return *snap.Wizard, nil
}

func (s *FlowService) failPayment(ctx context.Context, session *Session, cause error) (Snapshot, error) {
	glog.Errorf("flow %s: payment: %v", session.ID(), cause)
	if _, err := s.applyWizard(ctx, session, enrollment.PaymentFailed{Message: portalapi.Message(cause)}); err != nil {
		return Snapshot{}, errors.Join(cause, err)
	}
	return Snapshot{}, cause
}

// PayByCard validates the card locally, charges it through the portal API
// and records only the masked card on the wizard.
func (s *FlowService) PayByCard(ctx context.Context, id string, card validation.Card) (Snapshot, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	w, err := s.startPayment(ctx, session, func(w enrollment.State) error {
		return enrollment.ValidateCard(w, card, s.now())
	})
	if err != nil {
		return Snapshot{}, err
	}
	// the outcome is recorded even if the caller goes away mid-charge
	settle := context.WithoutCancel(ctx)
	payment, err := portalapi.NewCardPayment(*w.Registration, *w.Course, card)
	if err != nil {
		return s.failPayment(settle, session, err)
	}
	result, err := s.portal.ProcessCardPayment(ctx, payment)
	if err != nil {
		return s.failPayment(settle, session, err)
	}
	snap, err := s.applyWizard(settle, session, enrollment.PayByCard{Card: card, TransactionID: result.TransactionID})
	if err != nil {
		glog.Errorf("flow %s: charge %s taken but not recorded", id, result.TransactionID)
		return s.failPayment(settle, session, err)
	}
	glog.Infof("flow %s: card charged (%s)", id, result.TransactionID)
	return snap, nil
}

// PayByProof uploads a bank-transfer receipt and records it on the wizard.
func (s *FlowService) PayByProof(ctx context.Context, id string, proof validation.PaymentProof) (Snapshot, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	_, err := s.startPayment(ctx, session, func(w enrollment.State) error {
		var col validation.Collector
		col.Merge(enrollment.ValidateProof(w, proof.TransactionID, proof.Amount))
		col.Merge(validation.File("receipt", proof.Receipt))
		return col.Err()
	})
	if err != nil {
		return Snapshot{}, err
	}
	settle := context.WithoutCancel(ctx)
	rec, err := s.portal.SubmitPaymentProof(ctx, "", proof)
	if err != nil {
		return s.failPayment(settle, session, err)
	}
	glog.Infof("flow %s: receipt %s stored (%s)", id, rec.ID, validation.HumanSize(len(proof.Receipt.Data)))
	snap, err := s.applyWizard(settle, session, enrollment.PayByProof{
		TransactionID: proof.TransactionID,
		Amount:        proof.Amount,
		ReceiptRef:    rec.ID,
	})
	if err != nil {
		return s.failPayment(settle, session, err)
	}
	return snap, nil
}

// Submit relays a finished flow to the portal API. While the call is in
// flight the flow rejects a second submit and cancellation; a failure keeps
// every answer so the caller can retry.
func (s *FlowService) Submit(ctx context.Context, id string) (Snapshot, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	switch session.Snapshot().Kind {
	case FlowQuiz:
		return s.submitQuiz(ctx, session)
	case FlowWizard:
		return s.submitWizard(ctx, session)
	}
	return Snapshot{}, fmt.Errorf("%w: unknown flow kind", domain.ErrInvalidTransition)
}

func (s *FlowService) submitQuiz(ctx context.Context, session *Session) (Snapshot, error) {
	started, err := s.applyQuiz(ctx, session, quiz.SubmitStarted{})
	if err != nil {
		return Snapshot{}, err
	}
	// the outcome is recorded even if the caller goes away mid-call
	settle := context.WithoutCancel(ctx)
	// started is public; the private snapshot still carries the guest password.
	state := *session.Snapshot().Quiz
	catalog, err := s.catalogs.Catalog(ctx, state.CatalogVersion)
	if err != nil {
		return s.failQuiz(settle, session, err)
	}
	sub, err := quiz.BuildSubmission(catalog, state)
	if err != nil {
		return s.failQuiz(settle, session, err)
	}

	var outcome domain.AttemptOutcome
	if state.Variant == quiz.VariantGuest && state.Registration != nil {
		outcome, err = s.portal.SubmitGuestAttempt(ctx, domain.GuestQuizSubmission{Registration: *state.Registration, Quiz: sub})
	} else {
		outcome, err = s.portal.SubmitAttempt(ctx, sub)
	}
	if err != nil {
		return s.failQuiz(settle, session, err)
	}
	glog.Infof("flow %s: attempt %s submitted (passed=%t)", started.ID, outcome.AttemptID, outcome.Passed)
	return s.applyQuiz(settle, session, quiz.SubmitSucceeded{Outcome: outcome})
}

func (s *FlowService) failQuiz(ctx context.Context, session *Session, cause error) (Snapshot, error) {
	glog.Errorf("flow %s: submit attempt: %v", session.ID(), cause)
	if _, err := s.applyQuiz(ctx, session, quiz.SubmitFailed{Message: portalapi.Message(cause)}); err != nil {
		return Snapshot{}, errors.Join(cause, err)
	}
	return Snapshot{}, cause
}

func (s *FlowService) submitWizard(ctx context.Context, session *Session) (Snapshot, error) {
	started, err := s.applyWizard(ctx, session, enrollment.SubmitStarted{})
	if err != nil {
		return Snapshot{}, err
	}
	settle := context.WithoutCancel(ctx)
	state := *session.Snapshot().Wizard
	catalog, err := s.wizardCatalog(ctx, state)
	if err != nil {
		return s.failWizard(settle, session, err)
	}
	sub, err := enrollment.BuildSubmission(catalog, state, s.now())
	if err != nil {
		return s.failWizard(settle, session, err)
	}
	outcome, err := s.portal.SubmitEnrollment(ctx, sub)
	if err != nil {
		return s.failWizard(settle, session, err)
	}
	glog.Infof("flow %s: enrollment %s submitted for student %s", started.ID, outcome.EnrollmentID, outcome.StudentID)
	return s.applyWizard(settle, session, enrollment.SubmitSucceeded{Outcome: outcome})
}

func (s *FlowService) failWizard(ctx context.Context, session *Session, cause error) (Snapshot, error) {
	glog.Errorf("flow %s: submit enrollment: %v", session.ID(), cause)
	if _, err := s.applyWizard(ctx, session, enrollment.SubmitFailed{Message: portalapi.Message(cause)}); err != nil {
		return Snapshot{}, errors.Join(cause, err)
	}
	return Snapshot{}, cause
}

// Cancel abandons a flow without persisting anything to the portal API.
func (s *FlowService) Cancel(ctx context.Context, id string) (Snapshot, error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	if session.Snapshot().Kind == FlowWizard {
		return s.applyWizard(ctx, session, enrollment.Cancel{})
	}
	return s.applyQuiz(ctx, session, quiz.Cancel{})
}

// Subscribe returns a channel that receives snapshots of a flow.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *FlowService) Subscribe(ctx context.Context, id string) (<-chan Snapshot, func(), error) {
	session, ok := s.sessions.Get(ctx, id)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Release drops a finished flow from the store once its client is done with it.
func (s *FlowService) Release(ctx context.Context, id string) {
	s.sessions.DeleteIfClosed(ctx, id)
}
