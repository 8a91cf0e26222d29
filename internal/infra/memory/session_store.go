package memory

import (
	"context"
	"sync"

	"llnd-portal/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) DeleteIfClosed(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return
	}
	if session.IsClosed() {
		delete(s.sessions, id)
	}
}

// Len is the number of sessions held.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
