package app

import (
	"sync"
	"time"

	"llnd-portal/internal/enrollment"
	"llnd-portal/internal/quiz"
)

// FlowKind says which state machine a session runs.
type FlowKind string

const (
	FlowQuiz   FlowKind = "quiz"
	FlowWizard FlowKind = "wizard"
)

// Snapshot is the serializable state of one flow. Exactly one of Quiz and
// Wizard is set, matching Kind.
type Snapshot struct {
	ID        string            `json:"id"`
	Kind      FlowKind          `json:"kind"`
	Quiz      *quiz.State       `json:"quiz,omitempty"`
	Wizard    *enrollment.State `json:"wizard,omitempty"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Closed reports whether the flow was submitted or cancelled.
func (s Snapshot) Closed() bool {
	switch {
	case s.Quiz != nil:
		return s.Quiz.Closed()
	case s.Wizard != nil:
		return s.Wizard.Closed()
	}
	return true
}

// Public strips secrets before the snapshot leaves the service.
func (s Snapshot) Public() Snapshot {
	out := s
	if s.Quiz != nil {
		q := s.Quiz.Public()
		out.Quiz = &q
	}
	if s.Wizard != nil {
		w := s.Wizard.Public()
		out.Wizard = &w
	}
	return out
}

// Messages recorded when a pending portal call was lost with the process that made it.
const (
	MsgInterrupted        = "Your last request was interrupted. Please try again."
	MsgPaymentInterrupted = "Your payment was interrupted. Please check your statement before paying again."
)

// Resumed clears in-flight flags on a snapshot restored from storage. The
// process that set them is gone, so the call either failed or its result was
// never recorded; the learner retries either way.
func (s Snapshot) Resumed() Snapshot {
	out := s
	if s.Quiz != nil && s.Quiz.Submitting {
		q := *s.Quiz
		q.Submitting = false
		q.SubmitError = MsgInterrupted
		out.Quiz = &q
	}
	if s.Wizard != nil && (s.Wizard.Submitting || s.Wizard.Paying) {
		w := *s.Wizard
		if w.Submitting {
			w.Submitting = false
			w.SubmitError = MsgInterrupted
		}
		if w.Paying {
			w.Paying = false
			w.PaymentError = MsgPaymentInterrupted
		}
		out.Wizard = &w
	}
	return out
}

// Session is one in-flight flow with its subscribers.
type Session struct {
	now         func() time.Time
	mu          sync.RWMutex
	snap        Snapshot
	subscribers map[chan Snapshot]struct{}
}

// NewSession wraps snap. Infrastructure layers use it to restore persisted flows.
func NewSession(snap Snapshot) *Session {
	return NewSessionWithClock(snap, time.Now)
}

// NewSessionWithClock stamps updates with now instead of the wall clock.
func NewSessionWithClock(snap Snapshot, now func() time.Time) *Session {
	return &Session{
		now:         now,
		snap:        snap,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// ID is the flow id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.ID
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// IsClosed reports whether the flow accepts no more events.
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Closed()
}

// update applies fn atomically and broadcasts the result. The snapshot is
// unchanged when fn fails.
func (s *Session) update(fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.snap)
	if err != nil {
		return s.snap, err
	}
	next.Version = s.snap.Version + 1
	next.UpdatedAt = s.now()
	s.snap = next
	s.broadcastLocked()
	return next, nil
}

func (s *Session) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	// queued before registration so no broadcast can overtake it
	s.mu.Lock()
	ch <- s.snap.Public()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snap.Public()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its oldest pending snapshot so the latest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
