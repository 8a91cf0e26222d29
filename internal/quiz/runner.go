package quiz

import (
	"fmt"
	"strings"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/validation"
)

const (
	MsgAnswerRequired   = "Please answer the question before continuing"
	MsgAllPartsRequired = "Please answer all parts of the question before continuing"
)

// RunnerState tracks progress through one section.
type RunnerState struct {
	SectionID string                    `json:"sectionId"`
	Index     int                       `json:"index"`
	Answers   domain.AnswerMap          `json:"answers"`
	Parts     map[string]map[int]string `json:"parts,omitempty"`
}

// NewRunnerState starts a section at its first question.
func NewRunnerState(section domain.Section) RunnerState {
	return RunnerState{
		SectionID: section.ID,
		Answers:   make(domain.AnswerMap),
		Parts:     make(map[string]map[int]string),
	}
}

func (r RunnerState) clone() RunnerState {
	out := RunnerState{
		SectionID: r.SectionID,
		Index:     r.Index,
		Answers:   r.Answers.Clone(),
		Parts:     make(map[string]map[int]string, len(r.Parts)),
	}
	for qid, parts := range r.Parts {
		cp := make(map[int]string, len(parts))
		for i, v := range parts {
			cp[i] = v
		}
		out.Parts[qid] = cp
	}
	return out
}

func (r *RunnerState) ensure() {
	if r.Answers == nil {
		r.Answers = make(domain.AnswerMap)
	}
	if r.Parts == nil {
		r.Parts = make(map[string]map[int]string)
	}
}

func findQuestion(section domain.Section, qid string) (domain.Question, error) {
	for _, q := range section.Questions {
		if q.ID == qid {
			return q, nil
		}
	}
	return domain.Question{}, fmt.Errorf("%w: %s in section %s", domain.ErrQuestionNotFound, qid, section.ID)
}

func (r *RunnerState) answer(section domain.Section, qid, value string) error {
	q, err := findQuestion(section, qid)
	if err != nil {
		return err
	}
	r.ensure()
	if q.MultiPart() {
		parts := make(map[int]string, len(q.Parts))
		for i, v := range SplitParts(value) {
			if i < len(q.Parts) {
				parts[i] = v
			}
		}
		r.Parts[qid] = parts
		return nil
	}
	r.Answers[qid] = value
	return nil
}

func (r *RunnerState) answerPart(section domain.Section, qid string, part int, value string) error {
	q, err := findQuestion(section, qid)
	if err != nil {
		return err
	}
	if !q.MultiPart() {
		return fmt.Errorf("%w: question %s has no parts", domain.ErrInvalidTransition, qid)
	}
	if part < 0 || part >= len(q.Parts) {
		return fmt.Errorf("%w: part %d of question %s", domain.ErrQuestionNotFound, part, qid)
	}
	r.ensure()
	if r.Parts[qid] == nil {
		r.Parts[qid] = make(map[int]string, len(q.Parts))
	}
	r.Parts[qid][part] = value
	return nil
}

// completeDragDrop records the interaction as done once the drag/drop widgets report every placement.
func (r *RunnerState) completeDragDrop(section domain.Section, qid string) error {
	q, err := findQuestion(section, qid)
	if err != nil {
		return err
	}
	if q.Kind != domain.KindDragDrop {
		return fmt.Errorf("%w: question %s is not drag and drop", domain.ErrInvalidTransition, qid)
	}
	r.ensure()
	r.Answers[qid] = domain.DragDropCompleted
	return nil
}

func (r RunnerState) answered(q domain.Question) bool {
	if q.MultiPart() {
		parts := r.Parts[q.ID]
		for i := range q.Parts {
			if strings.TrimSpace(parts[i]) == "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(r.Answers[q.ID]) != ""
}

// answerMap joins multi-part answers in part order.
func (r RunnerState) answerMap(section domain.Section) domain.AnswerMap {
	out := make(domain.AnswerMap, len(section.Questions))
	for _, q := range section.Questions {
		if q.MultiPart() {
			parts := make([]string, len(q.Parts))
			for i := range q.Parts {
				parts[i] = r.Parts[q.ID][i]
			}
			out[q.ID] = JoinParts(parts)
			continue
		}
		if v, ok := r.Answers[q.ID]; ok {
			out[q.ID] = v
		}
	}
	return out
}

// advance validates the current question and moves on. done is true after the final question.
func (r *RunnerState) advance(section domain.Section, policy Policy) (done bool, result domain.SectionResult, err error) {
	if r.Index < 0 || r.Index >= len(section.Questions) {
		return false, domain.SectionResult{}, fmt.Errorf("%w: question index %d", domain.ErrInvalidTransition, r.Index)
	}
	q := section.Questions[r.Index]
	if !r.answered(q) {
		var c validation.Collector
		msg := MsgAnswerRequired
		if q.MultiPart() {
			msg = MsgAllPartsRequired
		}
		c.Add(q.ID, msg)
		return false, domain.SectionResult{}, c.Err()
	}
	if r.Index < len(section.Questions)-1 {
		r.Index++
		return false, domain.SectionResult{}, nil
	}
	return true, ScoreSection(section, r.answerMap(section), policy), nil
}

// Runner walks a learner through one section and hands the answers back through callbacks.
type Runner struct {
	section    domain.Section
	policy     Policy
	state      RunnerState
	onComplete func(domain.AnswerMap, domain.SectionResult)
	onCancel   func()
}

// NewRunner creates a runner for section. Either callback may be nil.
func NewRunner(section domain.Section, policy Policy, onComplete func(domain.AnswerMap, domain.SectionResult), onCancel func()) *Runner {
	return &Runner{
		section:    section,
		policy:     policy,
		state:      NewRunnerState(section),
		onComplete: onComplete,
		onCancel:   onCancel,
	}
}

// SetSection switches to another section and resets the question index.
func (r *Runner) SetSection(section domain.Section) {
	r.section = section
	r.state = NewRunnerState(section)
}

// Index is the 0-based position of the current question.
func (r *Runner) Index() int { return r.state.Index }

// Current returns the question being shown.
func (r *Runner) Current() domain.Question {
	return r.section.Questions[r.state.Index]
}

func (r *Runner) Answer(qid, value string) error {
	return r.state.answer(r.section, qid, value)
}

func (r *Runner) AnswerPart(qid string, part int, value string) error {
	return r.state.answerPart(r.section, qid, part, value)
}

func (r *Runner) CompleteDragDrop(qid string) error {
	return r.state.completeDragDrop(r.section, qid)
}

// Continue advances past the current question, firing the completion callback after the last one.
func (r *Runner) Continue() (bool, error) {
	done, result, err := r.state.advance(r.section, r.policy)
	if err != nil || !done {
		return false, err
	}
	if r.onComplete != nil {
		r.onComplete(result.Answers.Clone(), result)
	}
	return true, nil
}

// Cancel unwinds to the owner without scoring anything.
func (r *Runner) Cancel() {
	if r.onCancel != nil {
		r.onCancel()
	}
}
