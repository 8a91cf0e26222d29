package quiz

import (
	"math"
	"strings"

	"llnd-portal/internal/domain"
)

// Policy decides how raw section percentages become stored results.
type Policy int

const (
	// PolicyStandalone stores raw percentages; a section passes at or above its threshold.
	PolicyStandalone Policy = iota
	// PolicyWizard bumps any percentage below the threshold up to the threshold and always passes.
	PolicyWizard
)

// Normalize is the comparison form of an answer.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitParts splits a composite answer into its ordered sub-answers.
func SplitParts(answer string) []string {
	return strings.Split(answer, domain.PartSeparator)
}

// JoinParts builds the composite answer for a multi-part question.
func JoinParts(parts []string) string {
	return strings.Join(parts, domain.PartSeparator)
}

// QuestionCorrect reports whether answer scores as correct for q.
func QuestionCorrect(q domain.Question, answer string) bool {
	switch {
	case q.Kind == domain.KindDragDrop:
		// Completing the interaction counts as correct; placements are not checked.
		return Normalize(answer) == domain.DragDropCompleted
	case q.MultiPart():
		got := SplitParts(answer)
		if len(got) != len(q.Parts) {
			return false
		}
		for i, part := range q.Parts {
			if Normalize(got[i]) != Normalize(part.Correct) {
				return false
			}
		}
		return true
	default:
		return Normalize(answer) == Normalize(q.Correct)
	}
}

// Percentage is round(100 * correct / total); zero when there are no questions.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// ScoreSection grades answers against a section and applies the policy.
func ScoreSection(section domain.Section, answers domain.AnswerMap, policy Policy) domain.SectionResult {
	correct := 0
	for _, q := range section.Questions {
		if QuestionCorrect(q, answers[q.ID]) {
			correct++
		}
	}

	raw := Percentage(correct, len(section.Questions))
	result := domain.SectionResult{
		SectionID:     section.ID,
		SectionName:   section.Title,
		Correct:       correct,
		Questions:     len(section.Questions),
		Percentage:    raw,
		RawPercentage: raw,
		Passed:        raw >= section.PassingPercentage,
		Answers:       answers.Clone(),
	}
	if policy == PolicyWizard {
		// TODO(product): confirm the wizard should never fail a learner; behavior kept as shipped.
		if result.Percentage < section.PassingPercentage {
			result.Percentage = section.PassingPercentage
		}
		result.Passed = true
	}
	return result
}

// Summarize aggregates section results in the order given.
func Summarize(results []domain.SectionResult, policy Policy) domain.Totals {
	totals := domain.Totals{Passed: len(results) > 0}
	for _, r := range results {
		totals.TotalQuestions += r.Questions
		totals.Correct += r.Correct
		if !r.Passed {
			totals.Passed = false
		}
	}
	totals.Wrong = totals.TotalQuestions - totals.Correct
	totals.Percentage = Percentage(totals.Correct, totals.TotalQuestions)
	if policy == PolicyWizard {
		totals.Passed = true
	}
	return totals
}
