package quiz

import (
	"fmt"

	"llnd-portal/internal/domain"

	"github.com/goccy/go-json"
)

func decodeAs[T Event](name string, payload []byte) (Event, error) {
	var ev T
	if len(payload) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return ev, nil
}

// DecodeEvent builds a client-originated event from its wire name and JSON payload.
// Submission outcome events are produced server-side only and cannot be decoded.
func DecodeEvent(name string, payload []byte) (Event, error) {
	switch name {
	case "begin":
		return decodeAs[Begin](name, payload)
	case "answer":
		return decodeAs[Answer](name, payload)
	case "answerPart":
		return decodeAs[AnswerPart](name, payload)
	case "completeDragDrop":
		return decodeAs[CompleteDragDrop](name, payload)
	case "continue":
		return Continue{}, nil
	case "declare":
		return decodeAs[Declare](name, payload)
	case "cancel":
		return Cancel{}, nil
	}
	return nil, fmt.Errorf("%w: unsupported event %q", domain.ErrInvalidTransition, name)
}
