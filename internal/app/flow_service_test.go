package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"llnd-portal/internal/app"
	"llnd-portal/internal/catalog"
	"llnd-portal/internal/domain"
	"llnd-portal/internal/enrollment"
	"llnd-portal/internal/infra/memory"
	"llnd-portal/internal/portalapi"
	"llnd-portal/internal/quiz"
	"llnd-portal/internal/validation"
)

type fakePortal struct {
	mu          sync.Mutex
	attemptErr  error
	chargeErr   error
	onAttempt   func()
	charging    chan struct{} // signalled when a charge reaches the portal
	release     chan struct{} // charges block until closed
	attempts    []domain.QuizSubmission
	guests      []domain.GuestQuizSubmission
	enrollments []domain.EnrollmentSubmission
	charges     []portalapi.CardPayment
	proofs      []validation.PaymentProof
}

func (p *fakePortal) SubmitAttempt(_ context.Context, sub domain.QuizSubmission) (domain.AttemptOutcome, error) {
	if p.onAttempt != nil {
		p.onAttempt()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attemptErr != nil {
		return domain.AttemptOutcome{}, p.attemptErr
	}
	p.attempts = append(p.attempts, sub)
	return domain.AttemptOutcome{AttemptID: "att-1", StudentID: sub.StudentID, Passed: sub.Totals.Passed, CanEnroll: sub.Totals.Passed}, nil
}

func (p *fakePortal) SubmitGuestAttempt(_ context.Context, sub domain.GuestQuizSubmission) (domain.AttemptOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guests = append(p.guests, sub)
	return domain.AttemptOutcome{AttemptID: "att-g", UserID: "u-1", StudentID: "stu-g", Passed: true}, nil
}

func (p *fakePortal) SubmitEnrollment(_ context.Context, sub domain.EnrollmentSubmission) (domain.EnrollmentOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrollments = append(p.enrollments, sub)
	return domain.EnrollmentOutcome{StudentID: "stu-w", EnrollmentID: "enr-1"}, nil
}

func (p *fakePortal) ProcessCardPayment(_ context.Context, payment portalapi.CardPayment) (portalapi.CardPaymentResult, error) {
	p.mu.Lock()
	p.charges = append(p.charges, payment)
	chargeErr := p.chargeErr
	p.mu.Unlock()
	if chargeErr != nil {
		return portalapi.CardPaymentResult{}, chargeErr
	}
	if p.charging != nil {
		p.charging <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	return portalapi.CardPaymentResult{TransactionID: "txn-9", Status: "succeeded"}, nil
}

func (p *fakePortal) SubmitPaymentProof(_ context.Context, _ string, proof validation.PaymentProof) (portalapi.PaymentProofRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proofs = append(p.proofs, proof)
	return portalapi.PaymentProofRecord{ID: "proof-1", Status: "pending"}, nil
}

func (p *fakePortal) Courses(context.Context) ([]portalapi.CourseOption, error) {
	return []portalapi.CourseOption{{ID: "c1", Name: "Certificate III", Fee: 450}, {ID: "c2", Name: "Diploma", Fee: 900}}, nil
}

func (p *fakePortal) CourseDates(_ context.Context, courseID string) ([]portalapi.CourseDateOption, error) {
	if courseID != "c1" {
		return nil, &portalapi.APIError{Status: 404, Message: "Course not found"}
	}
	return []portalapi.CourseDateOption{{ID: "d1", CourseID: "c1", StartDate: "2026-04-01"}}, nil
}

// cancelAwareCatalogs fails once the caller's context is done, like the
// Redis and Postgres repositories do.
type cancelAwareCatalogs struct {
	app.CatalogRepository
}

func (c cancelAwareCatalogs) Catalog(ctx context.Context, version string) (domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}
	return c.CatalogRepository.Catalog(ctx, version)
}

var fixedNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestService(portal *fakePortal) *app.FlowService {
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(catalog.Default()), "", time.Minute)
	return app.NewFlowService(memory.NewSessionStore(), cancelAwareCatalogs{catalogs}, portal).WithClock(func() time.Time { return fixedNow })
}

const registerPayload = `{"registration":{"name":"Jordan Lee","email":"j@example.com","phone":"0400","password":"secret1","agreed":true}}`

// wizardAtPayment registers and picks course c1, leaving the wizard on the payment step.
func wizardAtPayment(t *testing.T, svc *app.FlowService) string {
	t.Helper()
	snap, err := svc.StartWizard(context.Background())
	if err != nil {
		t.Fatalf("start wizard: %v", err)
	}
	mustApply(t, svc, snap.ID, "register", registerPayload)
	mustApply(t, svc, snap.ID, "selectCourse", `{"course":{"courseId":"c1","courseDateId":"d1","fee":1}}`)
	return snap.ID
}

var visa = validation.Card{Holder: "Jordan Lee", Number: "4111111111111111", Expiry: "12/27", CVV: "123"}

func mustApply(t *testing.T, svc *app.FlowService, id, name, payload string) app.Snapshot {
	t.Helper()
	snap, err := svc.Apply(context.Background(), id, name, []byte(payload))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return snap
}

func payload(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

// answerAll plays the standalone quiz with correct answers and declares.
func answerAll(t *testing.T, svc *app.FlowService, id, prefix string) {
	t.Helper()
	for _, section := range catalog.Default().Sections {
		for _, q := range section.Questions {
			if q.Kind == domain.KindDragDrop {
				mustApply(t, svc, id, prefix+"completeDragDrop", payload(t, quiz.CompleteDragDrop{QuestionID: q.ID}))
			} else {
				mustApply(t, svc, id, prefix+"answer", payload(t, quiz.Answer{QuestionID: q.ID, Value: q.Correct}))
			}
			mustApply(t, svc, id, prefix+"continue", "")
		}
	}
	mustApply(t, svc, id, prefix+"declare", `{"declaration":{"honest":true,"ownWork":true,"name":"Jordan Lee"}}`)
}

func TestStudentAttemptSubmitRetry(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{attemptErr: &portalapi.APIError{Status: 503, Message: "Service unavailable"}}
	svc := newTestService(portal)

	snap, err := svc.StartQuiz(ctx, quiz.VariantStudent, &domain.Student{ID: "stu-1", Name: "Jordan Lee"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	mustApply(t, svc, snap.ID, "begin", "")
	answerAll(t, svc, snap.ID, "")

	if _, err := svc.Submit(ctx, snap.ID); err == nil {
		t.Fatalf("expected submit failure")
	}
	got, _ := svc.Get(ctx, snap.ID)
	if got.Quiz.Stage != quiz.StageResults || got.Quiz.SubmitError != "Service unavailable" || got.Quiz.Submitting {
		t.Fatalf("failure must keep results for retry: %+v", got.Quiz)
	}

	portal.attemptErr = nil
	done, err := svc.Submit(ctx, snap.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if done.Quiz.Stage != quiz.StageSubmitted || done.Quiz.Outcome.AttemptID != "att-1" {
		t.Fatalf("unexpected snapshot %+v", done.Quiz)
	}
	if len(portal.attempts) != 1 || portal.attempts[0].StudentID != "stu-1" || portal.attempts[0].DeclarationName != "Jordan Lee" {
		t.Fatalf("unexpected submission %+v", portal.attempts)
	}
}

func TestGuestAttemptSendsRegistration(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{}
	svc := newTestService(portal)

	snap, _ := svc.StartQuiz(ctx, quiz.VariantGuest, nil)
	_, err := svc.Apply(ctx, snap.ID, "begin", []byte(`{"registration":{"name":"Jordan","email":"bad-email","phone":"0400","password":"secret1","agreed":true}}`))
	if validation.First(err) != validation.MsgEmailInvalid {
		t.Fatalf("expected email error, got %v", err)
	}

	started := mustApply(t, svc, snap.ID, "begin", `{"registration":{"name":"Jordan","email":"j@example.com","phone":"0400","password":"secret1","agreed":true}}`)
	if started.Quiz.Registration.Password != "" {
		t.Fatalf("snapshot leaked the password")
	}
	answerAll(t, svc, snap.ID, "")
	if _, err := svc.Submit(ctx, snap.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(portal.guests) != 1 || portal.guests[0].Registration.Password != "secret1" {
		t.Fatalf("guest submission must carry the registration: %+v", portal.guests)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakePortal{})
	snap, _ := svc.StartQuiz(ctx, quiz.VariantStudent, &domain.Student{ID: "stu-1"})

	ch, cancel, err := svc.Subscribe(ctx, snap.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Quiz.Stage != quiz.StageGuidelines {
		t.Fatalf("unexpected initial snapshot %+v", initial.Quiz)
	}

	mustApply(t, svc, snap.ID, "begin", "")
	update := <-ch
	if update.Quiz.Stage != quiz.StageQuiz || update.Version != 1 {
		t.Fatalf("expected quiz stage at version 1, got %s v%d", update.Quiz.Stage, update.Version)
	}
}

func TestUnknownFlow(t *testing.T) {
	svc := newTestService(&fakePortal{})
	if _, err := svc.Apply(context.Background(), "nope", "begin", nil); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	if _, err := svc.StartQuiz(context.Background(), quiz.VariantStudent, nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("student attempt requires a student, got %v", err)
	}
}

func TestCancelAndRelease(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakePortal{})
	snap, _ := svc.StartQuiz(ctx, quiz.VariantStudent, &domain.Student{ID: "stu-1"})

	svc.Release(ctx, snap.ID)
	if _, err := svc.Get(ctx, snap.ID); err != nil {
		t.Fatalf("open flow must survive release: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, snap.ID)
	if err != nil || cancelled.Quiz.Stage != quiz.StageCancelled {
		t.Fatalf("cancel: %v %+v", err, cancelled.Quiz)
	}
	svc.Release(ctx, snap.ID)
	if _, err := svc.Get(ctx, snap.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected released flow gone, got %v", err)
	}
}

func TestWizardEndToEnd(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{}
	svc := newTestService(portal)

	id := wizardAtPayment(t, svc)
	paid := mustApply(t, svc, id, "payByCard", `{"card":{"holder":"Jordan Lee","number":"4111111111111111","expiry":"12/27","cvv":"123"}}`)

	if paid.Wizard.Step != enrollment.StepAssessment || paid.Wizard.Payment.TransactionID != "txn-9" || paid.Wizard.Paying {
		t.Fatalf("unexpected wizard after payment %+v", paid.Wizard)
	}
	if paid.Wizard.Course.CourseName != "Certificate III" || paid.Wizard.Course.StartDate != "2026-04-01" {
		t.Fatalf("course must be resolved from the portal dropdowns: %+v", paid.Wizard.Course)
	}
	if len(portal.charges) != 1 || portal.charges[0].Amount != 450 {
		t.Fatalf("expected one charge of the listed fee, got %+v", portal.charges)
	}

	answerAll(t, svc, id, "quiz.")
	form := `{"form":{"personal":{"givenNames":"Jordan","surname":"Lee","dateOfBirth":"1995-06-01","email":"j@example.com","mobile":"0400"},` +
		`"address":{"street":"1 Main St","suburb":"Carlton","state":"VIC","postcode":"3053"},` +
		`"emergency":{"name":"Sam","relationship":"Sibling","phone":"0401"},` +
		`"education":{"highestSchoolLevel":"Year 12","yearCompleted":"2012"},` +
		`"employment":{"status":"Full-time"},` +
		`"diversity":{"countryOfBirth":"Australia","languageAtHome":"English","indigenousStatus":"No"},` +
		`"usi":"ABCDE23456",` +
		`"consent":{"privacyNotice":true,"studentHandbook":true,"signature":"Jordan Lee","signedOn":"2026-03-10"}}}`
	mustApply(t, svc, id, "completeForm", form)

	done, err := svc.Submit(ctx, id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Wizard.Step != enrollment.StepSubmitted || done.Wizard.Outcome.EnrollmentID != "enr-1" {
		t.Fatalf("unexpected final wizard %+v", done.Wizard)
	}
	sub := portal.enrollments[0]
	if sub.Payment.CardLastFour != "1111" || sub.Quiz.Totals.Percentage != 100 || !sub.SubmittedAt.Equal(fixedNow) {
		t.Fatalf("unexpected combined submission %+v", sub)
	}
}

func TestWizardProofPayment(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{}
	svc := newTestService(portal)

	id := wizardAtPayment(t, svc)

	if _, err := svc.Apply(ctx, id, "payByProof", []byte(`{"transactionId":"BANK-1","amount":450,"receiptRef":"forged"}`)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("receipt references must come from an upload, got %v", err)
	}

	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	_, err := svc.PayByProof(ctx, id, validation.PaymentProof{
		TransactionID: "BANK-1", Amount: 1, Receipt: validation.Upload{Filename: "r.pdf", Data: pdf},
	})
	if validation.First(err) != enrollment.MsgAmountMismatch || len(portal.proofs) != 0 {
		t.Fatalf("expected the fee mismatch to stop the upload, got %v", err)
	}

	paid, err := svc.PayByProof(ctx, id, validation.PaymentProof{
		TransactionID: "BANK-1", Amount: 450, Receipt: validation.Upload{Filename: "r.pdf", Data: pdf},
	})
	if err != nil {
		t.Fatalf("pay by proof: %v", err)
	}
	if paid.Wizard.Payment.ReceiptRef != "proof-1" || paid.Wizard.Step != enrollment.StepAssessment {
		t.Fatalf("unexpected wizard %+v", paid.Wizard)
	}
}

func TestConcurrentCardPaymentChargesOnce(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{charging: make(chan struct{}, 1), release: make(chan struct{})}
	svc := newTestService(portal)
	id := wizardAtPayment(t, svc)

	first := make(chan error, 1)
	go func() {
		_, err := svc.PayByCard(ctx, id, visa)
		first <- err
	}()
	<-portal.charging

	if _, err := svc.PayByCard(ctx, id, visa); !errors.Is(err, domain.ErrSubmissionPending) {
		t.Fatalf("second charge must wait for the first, got %v", err)
	}
	if _, err := svc.Apply(ctx, id, "back", nil); !errors.Is(err, domain.ErrSubmissionPending) {
		t.Fatalf("back must wait for the charge, got %v", err)
	}
	if _, err := svc.Cancel(ctx, id); !errors.Is(err, domain.ErrSubmissionPending) {
		t.Fatalf("cancel must wait for the charge, got %v", err)
	}
	pending, _ := svc.Get(ctx, id)
	if !pending.Wizard.Paying {
		t.Fatalf("expected the payment to show as pending")
	}

	close(portal.release)
	if err := <-first; err != nil {
		t.Fatalf("first charge: %v", err)
	}
	if len(portal.charges) != 1 {
		t.Fatalf("expected exactly one charge, got %d", len(portal.charges))
	}
	got, _ := svc.Get(ctx, id)
	if got.Wizard.Step != enrollment.StepAssessment || got.Wizard.Paying {
		t.Fatalf("unexpected wizard after payment %+v", got.Wizard)
	}
}

func TestDeclinedCardCanBeRetried(t *testing.T) {
	ctx := context.Background()
	portal := &fakePortal{chargeErr: &portalapi.APIError{Status: 402, Message: "Card declined"}}
	svc := newTestService(portal)
	id := wizardAtPayment(t, svc)

	if _, err := svc.PayByCard(ctx, id, visa); err == nil {
		t.Fatalf("expected the charge to fail")
	}
	got, _ := svc.Get(ctx, id)
	if got.Wizard.Paying || got.Wizard.PaymentError != "Card declined" || got.Wizard.Step != enrollment.StepPayment {
		t.Fatalf("failure must leave the payment step open: %+v", got.Wizard)
	}

	portal.chargeErr = nil
	paid, err := svc.PayByCard(ctx, id, visa)
	if err != nil || paid.Wizard.Step != enrollment.StepAssessment || paid.Wizard.PaymentError != "" {
		t.Fatalf("retry: %v %+v", err, paid.Wizard)
	}
}

func TestSubmitSettlesAfterCallerGoesAway(t *testing.T) {
	portal := &fakePortal{}
	svc := newTestService(portal)
	snap, _ := svc.StartQuiz(context.Background(), quiz.VariantStudent, &domain.Student{ID: "stu-1"})
	mustApply(t, svc, snap.ID, "begin", "")
	answerAll(t, svc, snap.ID, "")

	ctx, cancel := context.WithCancel(context.Background())
	portal.onAttempt = cancel
	portal.attemptErr = context.Canceled
	if _, err := svc.Submit(ctx, snap.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled call to fail, got %v", err)
	}
	got, _ := svc.Get(context.Background(), snap.ID)
	if got.Quiz.Submitting || got.Quiz.SubmitError == "" || got.Quiz.Stage != quiz.StageResults {
		t.Fatalf("failure must be recorded for retry: %+v", got.Quiz)
	}

	// the portal accepts, but the caller is gone before the result is recorded
	ctx, cancel = context.WithCancel(context.Background())
	portal.onAttempt = cancel
	portal.attemptErr = nil
	done, err := svc.Submit(ctx, snap.ID)
	if err != nil || done.Quiz.Stage != quiz.StageSubmitted {
		t.Fatalf("success must be recorded: %v %+v", err, done.Quiz)
	}
}

func TestSelectCourseUsesPortalListing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakePortal{})
	snap, _ := svc.StartWizard(ctx)
	mustApply(t, svc, snap.ID, "register", registerPayload)

	_, err := svc.Apply(ctx, snap.ID, "selectCourse", []byte(`{"course":{"courseId":"c9","courseDateId":"d1","fee":1}}`))
	if validation.First(err) != enrollment.MsgCourseUnavailable {
		t.Fatalf("expected unknown course to be rejected, got %v", err)
	}
	_, err = svc.Apply(ctx, snap.ID, "selectCourse", []byte(`{"course":{"courseId":"c1","courseDateId":"d9"}}`))
	if validation.First(err) != enrollment.MsgCourseDateUnavailable {
		t.Fatalf("expected unknown date to be rejected, got %v", err)
	}
	picked := mustApply(t, svc, snap.ID, "selectCourse", `{"course":{"courseId":"c1","courseDateId":"d1","fee":1}}`)
	if picked.Wizard.Course.Fee != 450 {
		t.Fatalf("fee must come from the listing, got %v", picked.Wizard.Course.Fee)
	}
}

func TestSlowSubscriberSeesNewestLast(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakePortal{})
	snap, _ := svc.StartQuiz(ctx, quiz.VariantStudent, &domain.Student{ID: "stu-1"})
	ch, cancel, err := svc.Subscribe(ctx, snap.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	mustApply(t, svc, snap.ID, "begin", "")
	q := catalog.Default().Sections[0].Questions[0]
	for i := 0; i < 20; i++ {
		mustApply(t, svc, snap.ID, "answer", payload(t, quiz.Answer{QuestionID: q.ID, Value: q.Correct}))
	}

	last := -1
	for len(ch) > 0 {
		got := <-ch
		if got.Version <= last {
			t.Fatalf("versions out of order: %d after %d", got.Version, last)
		}
		last = got.Version
	}
	if last != 21 {
		t.Fatalf("expected the newest snapshot last, got version %d", last)
	}
}

func TestResumedClearsInFlightFlags(t *testing.T) {
	w := enrollment.NewState()
	w.Step = enrollment.StepPayment
	w.Paying = true
	snap := app.Snapshot{ID: "f", Kind: app.FlowWizard, Wizard: &w}

	got := snap.Resumed()
	if got.Wizard.Paying || got.Wizard.PaymentError != app.MsgPaymentInterrupted {
		t.Fatalf("unexpected resumed wizard %+v", got.Wizard)
	}
	if !w.Paying {
		t.Fatalf("original snapshot must be untouched")
	}
}
