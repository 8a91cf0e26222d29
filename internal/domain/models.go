package domain

import "time"

// QuestionKind selects how a question is answered and scored.
type QuestionKind string

const (
	KindSingle   QuestionKind = "single"
	KindDropdown QuestionKind = "dropdown" // multi-part, one select per part
	KindText     QuestionKind = "text"
	KindDragDrop QuestionKind = "dragdrop"
)

// DragDropCompleted is the answer recorded once every placement of a drag-drop question is done.
const DragDropCompleted = "completed"

// PartSeparator joins multi-part answers and correct-answer specs.
const PartSeparator = "|"

// QuestionPart is one ordered sub-answer of a multi-part question.
type QuestionPart struct {
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
	Correct string   `json:"correct"`
}

// Question is immutable content defined at build time.
type Question struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"prompt"`
	Kind    QuestionKind   `json:"kind"`
	Options []string       `json:"options,omitempty"`
	Correct string         `json:"correct"`
	Parts   []QuestionPart `json:"parts,omitempty"`
	Media   string         `json:"media,omitempty"`
}

// MultiPart reports whether the question is answered part by part.
func (q Question) MultiPart() bool {
	return len(q.Parts) > 0
}

// Public drops the correct-answer specs before a question is sent to a learner.
func (q Question) Public() Question {
	out := q
	out.Correct = ""
	if len(q.Parts) > 0 {
		out.Parts = make([]QuestionPart, len(q.Parts))
		for i, p := range q.Parts {
			p.Correct = ""
			out.Parts[i] = p
		}
	}
	return out
}

// Section groups questions of one skill domain.
type Section struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	PassingPercentage int        `json:"passingPercentage"`
	Questions         []Question `json:"questions"`
}

// Catalog is the ordered, versioned set of sections of the LLND assessment.
type Catalog struct {
	Version     string    `json:"version"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Sections    []Section `json:"sections"`
}

// Public returns a copy of the catalog without correct answers.
func (c Catalog) Public() Catalog {
	out := c
	out.Sections = make([]Section, len(c.Sections))
	for i, s := range c.Sections {
		qs := make([]Question, len(s.Questions))
		for j, q := range s.Questions {
			qs[j] = q.Public()
		}
		s.Questions = qs
		out.Sections[i] = s
	}
	return out
}

// Section returns the section with the given id.
func (c Catalog) Section(id string) (Section, bool) {
	for _, s := range c.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Question looks a question up across all sections.
func (c Catalog) Question(id string) (Question, bool) {
	for _, s := range c.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

// QuestionCount is the number of questions across every section.
func (c Catalog) QuestionCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Questions)
	}
	return n
}

// AnswerMap maps a question id to the learner's answer.
type AnswerMap map[string]string

// Clone returns an independent copy.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SectionResult is created once per section when its last question is answered.
type SectionResult struct {
	SectionID     string    `json:"sectionId"`
	SectionName   string    `json:"sectionName"`
	Correct       int       `json:"correct"`
	Questions     int       `json:"questions"`
	Percentage    int       `json:"percentage"`
	RawPercentage int       `json:"rawPercentage"`
	Passed        bool      `json:"passed"`
	Answers       AnswerMap `json:"answers,omitempty"`
}

// Totals aggregates section results of one attempt.
type Totals struct {
	TotalQuestions int  `json:"totalQuestions"`
	Correct        int  `json:"correct"`
	Wrong          int  `json:"wrong"`
	Percentage     int  `json:"percentage"`
	Passed         bool `json:"passed"`
}

// Declaration gates submission of results.
type Declaration struct {
	Honest  bool   `json:"honest" validate:"required"`
	OwnWork bool   `json:"ownWork" validate:"required"`
	Name    string `json:"name" validate:"notblank"`
}

// Registration holds guest sign-up fields.
type Registration struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"email"`
	Phone    string `json:"phone" validate:"notblank"`
	Password string `json:"password,omitempty" validate:"min=6"`
	Agreed   bool   `json:"agreed" validate:"required"`
}

// Student identifies the authenticated learner a flow runs for.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AttemptOutcome is what the portal API reports after accepting an attempt.
type AttemptOutcome struct {
	AttemptID string `json:"attemptId"`
	UserID    string `json:"userId,omitempty"`
	StudentID string `json:"studentId,omitempty"`
	Passed    bool   `json:"passed"`
	CanEnroll bool   `json:"canEnroll"`
}

// CompletionStatus is the badge shown on admin screens.
type CompletionStatus string

const (
	StatusCompleted    CompletionStatus = "Completed"
	StatusNotCompleted CompletionStatus = "Not Completed"
)

// StudentStatus is one row of the admin students board.
type StudentStatus struct {
	StudentID  string           `json:"studentId"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Active     bool             `json:"active"`
	Quiz       CompletionStatus `json:"quiz"`
	Enrollment CompletionStatus `json:"enrollment"`
	CheckedAt  time.Time        `json:"checkedAt"`
}
