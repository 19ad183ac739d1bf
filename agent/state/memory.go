package state

import (
	"context"
	"strings"
	"sync"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

// MemoryLockStore keeps session locks in process memory. Expired locks
// are dropped lazily on read. Suitable for tests and single-node runs;
// multi-replica deployments need the Upstash store.
type MemoryLockStore struct {
	mu    sync.RWMutex
	locks map[string]*contractx.Lock
	now   func() time.Time
}

// MemoryLockOption customizes a MemoryLockStore.
type MemoryLockOption func(*MemoryLockStore)

// WithLockClock overrides the store's clock. Tests use this to drive
// TTL expiry deterministically.
func WithLockClock(now func() time.Time) MemoryLockOption {
	return func(s *MemoryLockStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryLockStore(opts ...MemoryLockOption) *MemoryLockStore {
	s := &MemoryLockStore{
		locks: make(map[string]*contractx.Lock),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryLockStore) Get(ctx context.Context, sessionID string) (*contractx.Lock, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sessionID]
	if !ok {
		return nil, ErrLockNotFound
	}
	if lock.Expired(s.now().UTC()) {
		delete(s.locks, sessionID)
		return nil, ErrLockNotFound
	}

	copied := *lock
	return &copied, nil
}

func (s *MemoryLockStore) Set(ctx context.Context, sessionID string, workerName string, ttl time.Duration) (*contractx.Lock, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	workerName = strings.TrimSpace(workerName)
	if workerName == "" {
		return nil, ErrInvalidWorker
	}

	now := s.now().UTC()
	lock := &contractx.Lock{
		SessionID:  sessionID,
		WorkerName: workerName,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	s.mu.Lock()
	s.locks[sessionID] = lock
	s.mu.Unlock()

	copied := *lock
	return &copied, nil
}

func (s *MemoryLockStore) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
	return nil
}

// MemoryHistoryStore keeps per-session turn logs in process memory.
type MemoryHistoryStore struct {
	mu    sync.RWMutex
	turns map[string][]contractx.Turn
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		turns: make(map[string][]contractx.Turn),
	}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, turn *contractx.Turn) error {
	if turn == nil {
		return ErrNilTurn
	}
	sessionID := strings.TrimSpace(turn.SessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turn.SequenceNo = len(s.turns[sessionID]) + 1
	s.turns[sessionID] = append(s.turns[sessionID], *turn)
	return nil
}

func (s *MemoryHistoryStore) Recent(ctx context.Context, sessionID string, maxTurns int) ([]contractx.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]contractx.Turn(nil), tail(s.turns[sessionID], maxTurns)...), nil
}

func (s *MemoryHistoryStore) ForWorker(ctx context.Context, sessionID string, workerName string, maxTurns int) ([]contractx.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	workerName = strings.TrimSpace(workerName)
	if workerName == "" {
		return nil, ErrInvalidWorker
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]contractx.Turn(nil), filterForWorker(s.turns[sessionID], workerName, maxTurns)...), nil
}

func (s *MemoryHistoryStore) ClearSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	delete(s.turns, sessionID)
	s.mu.Unlock()
	return nil
}
