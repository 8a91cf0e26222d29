package domain

import "time"

// QuizSubmission is the attempt payload relayed to the portal API.
type QuizSubmission struct {
	StudentID          string          `json:"studentId,omitempty"`
	CatalogVersion     string          `json:"catalogVersion"`
	CatalogFingerprint string          `json:"catalogFingerprint,omitempty"`
	Totals             Totals          `json:"totals"`
	Sections           []SectionResult `json:"sections"`
	DeclarationName    string          `json:"declarationName"`
}

// GuestQuizSubmission creates the account and records the attempt in one call.
type GuestQuizSubmission struct {
	Registration Registration   `json:"registration"`
	Quiz         QuizSubmission `json:"quiz"`
}

// EnrollmentSubmission is the single combined payload sent when the wizard finishes.
type EnrollmentSubmission struct {
	Registration Registration    `json:"registration"`
	Course       CourseSelection `json:"course"`
	Payment      PaymentRecord   `json:"payment"`
	Quiz         QuizSubmission  `json:"quiz"`
	Form         EnrollmentForm  `json:"enrollmentForm"`
	SubmittedAt  time.Time       `json:"submittedAt"`
}

// EnrollmentOutcome lists the records the portal API created for a wizard submission.
type EnrollmentOutcome struct {
	UserID       string `json:"userId"`
	StudentID    string `json:"studentId"`
	EnrollmentID string `json:"enrollmentId"`
	AttemptID    string `json:"attemptId"`
	FormID       string `json:"enrollmentFormId"`
}
