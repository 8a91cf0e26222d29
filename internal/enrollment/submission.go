package enrollment

import (
	"fmt"
	"time"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/quiz"
)

// BuildSubmission packages every step into the combined payload. Section
// scores already carry the wizard bump applied when each section completed.
func BuildSubmission(catalog domain.Catalog, s State, now time.Time) (domain.EnrollmentSubmission, error) {
	if s.Step != StepForm || s.Form == nil {
		return domain.EnrollmentSubmission{}, fmt.Errorf("%w: wizard not ready in %s", domain.ErrInvalidTransition, s.Step)
	}
	if s.Registration == nil || s.Course == nil || s.Payment == nil || s.Quiz == nil {
		return domain.EnrollmentSubmission{}, fmt.Errorf("%w: wizard is missing an earlier step", domain.ErrInvalidTransition)
	}
	q, err := quiz.BuildSubmission(catalog, *s.Quiz)
	if err != nil {
		return domain.EnrollmentSubmission{}, err
	}
	return domain.EnrollmentSubmission{
		Registration: *s.Registration,
		Course:       *s.Course,
		Payment:      *s.Payment,
		Quiz:         q,
		Form:         *s.Form,
		SubmittedAt:  now.UTC(),
	}, nil
}
