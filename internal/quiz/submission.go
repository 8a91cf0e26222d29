package quiz

import (
	"fmt"

	"llnd-portal/internal/domain"
)

// BuildSubmission packages a declared attempt for the portal API.
func BuildSubmission(catalog domain.Catalog, s State) (domain.QuizSubmission, error) {
	if s.Stage != StageResults || s.Totals == nil || s.Declaration == nil {
		return domain.QuizSubmission{}, fmt.Errorf("%w: attempt not ready in %s", domain.ErrInvalidTransition, s.Stage)
	}
	sub := domain.QuizSubmission{
		CatalogVersion:     s.CatalogVersion,
		CatalogFingerprint: catalog.Fingerprint,
		Totals:             *s.Totals,
		Sections:           append([]domain.SectionResult{}, s.Results...),
		DeclarationName:    s.DeclarationName(),
	}
	if s.Student != nil {
		sub.StudentID = s.Student.ID
	}
	return sub, nil
}
