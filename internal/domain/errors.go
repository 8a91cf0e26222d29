package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no in-flight flow exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCatalogNotFound indicates the quiz content could not be loaded.
	ErrCatalogNotFound = errors.New("quiz catalog not found")
	// ErrSectionNotFound indicates a section id is not part of the catalog.
	ErrSectionNotFound = errors.New("section not found")
	// ErrQuestionNotFound indicates a question id is not part of the current section.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidTransition is returned when an event does not apply to the current stage.
	ErrInvalidTransition = errors.New("event not allowed in current stage")
	// ErrSubmissionPending blocks duplicate submissions while one is in flight.
	ErrSubmissionPending = errors.New("submission already in progress")
	// ErrFlowClosed is returned for events sent after submission or cancellation.
	ErrFlowClosed = errors.New("flow already finished")
)
