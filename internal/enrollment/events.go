package enrollment

import (
	"fmt"
	"strings"

	"llnd-portal/internal/domain"
	"llnd-portal/internal/quiz"

	"github.com/goccy/go-json"
)

const quizEventPrefix = "quiz."

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

// DecodeEvent builds a client-originated wizard event. Assessment events are
// addressed as "quiz.<name>", e.g. "quiz.answer".
func DecodeEvent(name string, payload []byte) (Event, error) {
	if inner, ok := strings.CutPrefix(name, quizEventPrefix); ok {
		ev, err := quiz.DecodeEvent(inner, payload)
		if err != nil {
			return nil, err
		}
		return QuizEvent{Event: ev}, nil
	}
	switch name {
	case "register":
		return decodeAs[Register](name, payload)
	case "selectCourse":
		return decodeAs[SelectCourse](name, payload)
	case "payByCard":
		return decodeAs[PayByCard](name, payload)
	case "payByProof":
		return decodeAs[PayByProof](name, payload)
	case "completeForm":
		return decodeAs[CompleteForm](name, payload)
	case "back":
		return Back{}, nil
	case "cancel":
		return Cancel{}, nil
	}
	return nil, fmt.Errorf("%w: unsupported event %q", domain.ErrInvalidTransition, name)
}
