package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"llnd-portal/internal/app"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// Live sessions stay in a local map so subscribers keep receiving broadcasts;
// every Put also writes the private snapshot to Redis so a restarted process
// can restore the flow. Snapshots hold the guest password until submission,
// which is why every key carries a TTL.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

// putScript writes a snapshot unless Redis already holds a newer version of
// the same flow. KEYS[1] flow key; ARGV version, snapshot JSON, ttl in ms.
var putScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (s *SessionStore) Put(ctx context.Context, session *app.Session) error {
	snap := session.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.sessions[snap.ID]; !ok {
		s.sessions[snap.ID] = session
	}
	s.mu.Unlock()

	written, err := putScript.Run(ctx, s.client, []string{s.key(snap.ID)}, snap.Version, data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if written == 0 {
		glog.V(1).Infof("flow %s: skipped stale version %d", snap.ID, snap.Version)
	}
	return nil
}

// Get returns the live session, restoring it from Redis on a miss. A
// restored flow that was mid-call comes back with that call marked failed.
func (s *SessionStore) Get(ctx context.Context, id string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return session, true
	}

	data, err := s.client.HGet(ctx, s.key(id), "data").Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.Warningf("read flow %s: %v", id, err)
		}
		return nil, false
	}
	var snap app.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		glog.Warningf("decode flow %s: %v", id, err)
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have restored it meanwhile
	if existing, ok := s.sessions[id]; ok {
		return existing, true
	}
	session = app.NewSession(snap.Resumed())
	s.sessions[id] = session
	return session, true
}

func (s *SessionStore) DeleteIfClosed(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || !session.IsClosed() {
		return
	}
	delete(s.sessions, id)
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		glog.Warningf("delete flow %s: %v", id, err)
	}
}

func (s *SessionStore) key(id string) string {
	return "portal:flow:" + id
}
