package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/validation"
)

// Stage is the screen an attempt is on.
type Stage string

const (
	StageGuidelines  Stage = "guidelines"
	StageQuiz        Stage = "quiz"
	StageDeclaration Stage = "declaration"
	StageResults     Stage = "results"
	StageSubmitted   Stage = "submitted"
	StageCancelled   Stage = "cancelled"
)

// Variant distinguishes the three places the assessment runs.
type Variant string

const (
	VariantStudent Variant = "student" // signed-in learner
	VariantGuest   Variant = "guest"   // registers before starting
	VariantWizard  Variant = "wizard"  // step 4 of the enrollment wizard
)

const (
	MsgDeclarationHonest  = "Please confirm the answers are your own"
	MsgDeclarationOwnWork = "Please confirm you completed the assessment without help"
	MsgDeclarationName    = "Please type your full name"
)

// ErrCatalogMismatch is returned when the catalog differs from the one the attempt started on.
var ErrCatalogMismatch = errors.New("catalog version changed during attempt")

// Policy returns the scoring policy the variant uses.
func (v Variant) Policy() Policy {
	if v == VariantWizard {
		return PolicyWizard
	}
	return PolicyStandalone
}

// State is the full, serializable state of one quiz attempt.
type State struct {
	Variant        Variant                `json:"variant"`
	Stage          Stage                  `json:"stage"`
	CatalogVersion string                 `json:"catalogVersion"`
	Student        *domain.Student        `json:"student,omitempty"`
	Registration   *domain.Registration   `json:"registration,omitempty"`
	SectionIndex   int                    `json:"sectionIndex"`
	Runner         RunnerState            `json:"runner"`
	Results        []domain.SectionResult `json:"results"`
	Totals         *domain.Totals         `json:"totals,omitempty"`
	Declaration    *domain.Declaration    `json:"declaration,omitempty"`
	Submitting     bool                   `json:"submitting"`
	SubmitError    string                 `json:"submitError,omitempty"`
	Outcome        *domain.AttemptOutcome `json:"outcome,omitempty"`
}

// NewState opens an attempt on the guidelines screen. student is nil for guests.
func NewState(variant Variant, catalog domain.Catalog, student *domain.Student) State {
	s := State{
		Variant:        variant,
		Stage:          StageGuidelines,
		CatalogVersion: catalog.Version,
		Results:        []domain.SectionResult{},
	}
	if student != nil {
		cp := *student
		s.Student = &cp
	}
	return s
}

// Closed reports whether the attempt accepts no further events.
func (s State) Closed() bool {
	return s.Stage == StageSubmitted || s.Stage == StageCancelled
}

// Public returns a copy safe to hand to clients.
func (s State) Public() State {
	out := s.clone()
	if out.Registration != nil {
		out.Registration.Password = ""
	}
	return out
}

// DeclarationName is the typed name bundled into the submission.
func (s State) DeclarationName() string {
	if s.Declaration == nil {
		return ""
	}
	return strings.TrimSpace(s.Declaration.Name)
}

func (s State) clone() State {
	out := s
	out.Runner = s.Runner.clone()
	out.Results = append([]domain.SectionResult{}, s.Results...)
	if s.Student != nil {
		cp := *s.Student
		out.Student = &cp
	}
	if s.Registration != nil {
		cp := *s.Registration
		out.Registration = &cp
	}
	if s.Totals != nil {
		cp := *s.Totals
		out.Totals = &cp
	}
	if s.Declaration != nil {
		cp := *s.Declaration
		out.Declaration = &cp
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
	// Begin leaves the guidelines screen. Guests must carry a registration.
	Begin struct {
		Registration *domain.Registration `json:"registration,omitempty"`
	}
	Answer struct {
		QuestionID string `json:"questionId"`
		Value      string `json:"value"`
	}
	AnswerPart struct {
		QuestionID string `json:"questionId"`
		Part       int    `json:"part"`
		Value      string `json:"value"`
	}
	CompleteDragDrop struct {
		QuestionID string `json:"questionId"`
	}
	Continue struct{}
	Declare  struct {
		Declaration domain.Declaration `json:"declaration"`
	}
	SubmitStarted   struct{}
	SubmitSucceeded struct {
		Outcome domain.AttemptOutcome `json:"outcome"`
	}
	SubmitFailed struct {
		Message string `json:"message"`
	}
	Cancel struct{}
)

func (Begin) eventName() string            { return "begin" }
func (Answer) eventName() string           { return "answer" }
func (AnswerPart) eventName() string       { return "answerPart" }
func (CompleteDragDrop) eventName() string { return "completeDragDrop" }
func (Continue) eventName() string         { return "continue" }
func (Declare) eventName() string          { return "declare" }
func (SubmitStarted) eventName() string    { return "submitStarted" }
func (SubmitSucceeded) eventName() string  { return "submitSucceeded" }
func (SubmitFailed) eventName() string     { return "submitFailed" }
func (Cancel) eventName() string           { return "cancel" }

// EventName is the wire name of e.
func EventName(e Event) string {
	return e.eventName()
}

func invalid(s State, e Event) error {
	return fmt.Errorf("%w: %s during %s", domain.ErrInvalidTransition, e.eventName(), s.Stage)
}

var declarationMessages = validation.Messages{
	"honest":  MsgDeclarationHonest,
	"ownWork": MsgDeclarationOwnWork,
	"name":    MsgDeclarationName,
}

// ValidateDeclaration requires both acknowledgements and a non-empty name.
func ValidateDeclaration(d domain.Declaration) error {
	var c validation.Collector
	c.Struct(context.Background(), d, declarationMessages)
	return c.Err()
}

// Transition applies e to s and returns the next state. s is never modified;
// on error the returned state equals s.
func Transition(catalog domain.Catalog, s State, e Event) (State, error) {
	if s.Closed() {
		return s, domain.ErrFlowClosed
	}
	if UsesCatalog(e) && s.CatalogVersion != "" && catalog.Version != s.CatalogVersion {
		return s, fmt.Errorf("%w: started on %s, got %s", ErrCatalogMismatch, s.CatalogVersion, catalog.Version)
	}
	next := s.clone()

	switch ev := e.(type) {
	case Cancel:
		if s.Submitting {
			return s, domain.ErrSubmissionPending
		}
		next.Stage = StageCancelled
		return next, nil

	case Begin:
		if s.Stage != StageGuidelines {
			return s, invalid(s, e)
		}
		if len(catalog.Sections) == 0 {
			return s, domain.ErrCatalogNotFound
		}
		if s.Variant == VariantGuest {
			if ev.Registration == nil {
				return s, validation.Registration(domain.Registration{})
			}
			if err := validation.Registration(*ev.Registration); err != nil {
				return s, err
			}
		}
		if ev.Registration != nil {
			cp := *ev.Registration
			next.Registration = &cp
		}
		next.Stage = StageQuiz
		next.SectionIndex = 0
		next.Runner = NewRunnerState(catalog.Sections[0])
		return next, nil

	case Answer, AnswerPart, CompleteDragDrop, Continue:
		if s.Stage != StageQuiz {
			return s, invalid(s, e)
		}
		if s.SectionIndex < 0 || s.SectionIndex >= len(catalog.Sections) {
			return s, fmt.Errorf("%w: section index %d", domain.ErrSectionNotFound, s.SectionIndex)
		}
		section := catalog.Sections[s.SectionIndex]
		var err error
		switch ev := ev.(type) {
		case Answer:
			err = next.Runner.answer(section, ev.QuestionID, ev.Value)
		case AnswerPart:
			err = next.Runner.answerPart(section, ev.QuestionID, ev.Part, ev.Value)
		case CompleteDragDrop:
			err = next.Runner.completeDragDrop(section, ev.QuestionID)
		case Continue:
			err = next.completeSection(catalog, section)
		}
		if err != nil {
			return s, err
		}
		return next, nil

	case Declare:
		if s.Stage != StageDeclaration {
			return s, invalid(s, e)
		}
		if err := ValidateDeclaration(ev.Declaration); err != nil {
			return s, err
		}
		d := ev.Declaration
		d.Name = strings.TrimSpace(d.Name)
		next.Declaration = &d
		next.Stage = StageResults
		return next, nil

	case SubmitStarted:
		if s.Stage != StageResults || s.Variant == VariantWizard {
			return s, invalid(s, e)
		}
		if s.Submitting {
			return s, domain.ErrSubmissionPending
		}
		next.Submitting = true
		next.SubmitError = ""
		return next, nil

	case SubmitSucceeded:
		if s.Stage != StageResults || !s.Submitting {
			return s, invalid(s, e)
		}
		outcome := ev.Outcome
		next.Submitting = false
		next.Outcome = &outcome
		next.Stage = StageSubmitted
		return next, nil

	case SubmitFailed:
		if s.Stage != StageResults || !s.Submitting {
			return s, invalid(s, e)
		}
		next.Submitting = false
		next.SubmitError = ev.Message
		return next, nil
	}
	return s, fmt.Errorf("%w: unknown event %T", domain.ErrInvalidTransition, e)
}

// UsesCatalog reports whether Transition reads catalog content for e. Other
// events may be applied with an empty catalog.
func UsesCatalog(e Event) bool {
	switch e.(type) {
	case Begin, Answer, AnswerPart, CompleteDragDrop, Continue:
		return true
	}
	return false
}

// completeSection handles Continue inside the quiz stage.
func (s *State) completeSection(catalog domain.Catalog, section domain.Section) error {
	done, result, err := s.Runner.advance(section, s.Variant.Policy())
	if err != nil || !done {
		return err
	}
	s.Results = append(s.Results, result)
	s.SectionIndex++
	if s.SectionIndex < len(catalog.Sections) {
		s.Runner = NewRunnerState(catalog.Sections[s.SectionIndex])
		return nil
	}
	totals := Summarize(s.Results, s.Variant.Policy())
	s.Totals = &totals
	s.Runner = RunnerState{}
	s.Stage = StageDeclaration
	return nil
}

// CurrentQuestion returns the question on screen while in the quiz stage.
func (s State) CurrentQuestion(catalog domain.Catalog) (domain.Question, bool) {
	if s.Stage != StageQuiz || s.SectionIndex >= len(catalog.Sections) {
		return domain.Question{}, false
	}
	section := catalog.Sections[s.SectionIndex]
	if s.Runner.Index < 0 || s.Runner.Index >= len(section.Questions) {
		return domain.Question{}, false
	}
	return section.Questions[s.Runner.Index], true
}
