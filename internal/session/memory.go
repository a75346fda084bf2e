package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Growth is unbounded unless
// callers finalize or abandon their workflows; use the Redis backend when
// eviction matters.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	lockMu   sync.Mutex
	locks    map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) Create(ctx context.Context, sess Session) error {
	lock := s.sessionLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(Session) (Session, error)) (Session, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}

	updated, err := fn(current)
	if err != nil {
		return Session{}, err
	}
	updated.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.sessions[id] = updated
	s.mu.Unlock()
	return updated, nil
}

// Delete serializes on the same per-key lock as Update, so an in-flight
// update cannot write the record back after it has been removed.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)

	s.lockMu.Lock()
	delete(s.locks, id)
	s.lockMu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sessionLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[id]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[id] = lock
	return lock
}
