package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	upstashx "github.com/pocketsage/pocketsage/pkg/upstash"
)

const (
	defaultLockKeyPrefix    = "pocketsage:lock:"
	defaultHistoryKeyPrefix = "pocketsage:history:"
)

// UpstashLockStore persists session locks in Upstash Redis via REST.
// The Redis key carries a native TTL so abandoned locks evaporate on
// the server; ExpiresAt is still checked on read for clock-skew safety.
type UpstashLockStore struct {
	client    *upstashx.Client
	keyPrefix string
	now       func() time.Time
}

// UpstashLockOption customizes an UpstashLockStore.
type UpstashLockOption func(*UpstashLockStore)

func WithLockKeyPrefix(prefix string) UpstashLockOption {
	return func(s *UpstashLockStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithUpstashLockClock(now func() time.Time) UpstashLockOption {
	return func(s *UpstashLockStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewUpstashLockStore(client *upstashx.Client, opts ...UpstashLockOption) (*UpstashLockStore, error) {
	if client == nil {
		return nil, fmt.Errorf("upstash client is required")
	}
	store := &UpstashLockStore{
		client:    client,
		keyPrefix: defaultLockKeyPrefix,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *UpstashLockStore) Get(ctx context.Context, sessionID string) (*contractx.Lock, error) {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.client.Do(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	payload := bytes.TrimSpace(result)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, ErrLockNotFound
	}

	var encoded string
	if err := json.Unmarshal(payload, &encoded); err != nil {
		return nil, fmt.Errorf("decode lock payload: %w", err)
	}

	var lock contractx.Lock
	if err := json.Unmarshal([]byte(encoded), &lock); err != nil {
		return nil, fmt.Errorf("unmarshal lock: %w", err)
	}

	if lock.Expired(s.now().UTC()) {
		// Best effort; the key's TTL removes it anyway.
		_, _ = s.client.Do(ctx, []any{"DEL", key})
		return nil, ErrLockNotFound
	}

	return &lock, nil
}

func (s *UpstashLockStore) Set(ctx context.Context, sessionID string, workerName string, ttl time.Duration) (*contractx.Lock, error) {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	workerName = strings.TrimSpace(workerName)
	if workerName == "" {
		return nil, ErrInvalidWorker
	}

	now := s.now().UTC()
	lock := &contractx.Lock{
		SessionID:  strings.TrimSpace(sessionID),
		WorkerName: workerName,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	payload, err := json.Marshal(lock)
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}

	cmd := []any{"SET", key, string(payload)}
	if ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(ttl))
	}

	if _, err := s.client.Do(ctx, cmd); err != nil {
		return nil, err
	}
	return lock, nil
}

func (s *UpstashLockStore) Clear(ctx context.Context, sessionID string) error {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	_, err = s.client.Do(ctx, []any{"DEL", key})
	return err
}

// UpstashHistoryStore keeps each session's turn log as a Redis list of
// JSON-encoded turns. Append-only; only ClearSession removes entries.
type UpstashHistoryStore struct {
	client    *upstashx.Client
	keyPrefix string
}

// UpstashHistoryOption customizes an UpstashHistoryStore.
type UpstashHistoryOption func(*UpstashHistoryStore)

func WithHistoryKeyPrefix(prefix string) UpstashHistoryOption {
	return func(s *UpstashHistoryStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func NewUpstashHistoryStore(client *upstashx.Client, opts ...UpstashHistoryOption) (*UpstashHistoryStore, error) {
	if client == nil {
		return nil, fmt.Errorf("upstash client is required")
	}
	store := &UpstashHistoryStore{
		client:    client,
		keyPrefix: defaultHistoryKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *UpstashHistoryStore) Append(ctx context.Context, turn *contractx.Turn) error {
	if turn == nil {
		return ErrNilTurn
	}
	key, err := redisKey(s.keyPrefix, turn.SessionID)
	if err != nil {
		return err
	}

	// Turns for one session are serialized by the dispatcher, so the
	// length read and the push cannot interleave with another append.
	length, err := s.listLength(ctx, key)
	if err != nil {
		return err
	}
	turn.SequenceNo = length + 1

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	_, err = s.client.Do(ctx, []any{"RPUSH", key, string(payload)})
	return err
}

func (s *UpstashHistoryStore) Recent(ctx context.Context, sessionID string, maxTurns int) ([]contractx.Turn, error) {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	start := 0
	if maxTurns > 0 {
		start = -maxTurns
	}
	return s.listRange(ctx, key, start)
}

func (s *UpstashHistoryStore) ForWorker(ctx context.Context, sessionID string, workerName string, maxTurns int) ([]contractx.Turn, error) {
	workerName = strings.TrimSpace(workerName)
	if workerName == "" {
		return nil, ErrInvalidWorker
	}
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	turns, err := s.listRange(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	return filterForWorker(turns, workerName, maxTurns), nil
}

func (s *UpstashHistoryStore) ClearSession(ctx context.Context, sessionID string) error {
	key, err := redisKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	_, err = s.client.Do(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashHistoryStore) listLength(ctx context.Context, key string) (int, error) {
	result, err := s.client.Do(ctx, []any{"LLEN", key})
	if err != nil {
		return 0, err
	}
	length, err := strconv.Atoi(string(bytes.TrimSpace(result)))
	if err != nil {
		return 0, fmt.Errorf("decode list length: %w", err)
	}
	return length, nil
}

func (s *UpstashHistoryStore) listRange(ctx context.Context, key string, start int) ([]contractx.Turn, error) {
	result, err := s.client.Do(ctx, []any{"LRANGE", key, start, -1})
	if err != nil {
		return nil, err
	}

	payload := bytes.TrimSpace(result)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, nil
	}

	var encoded []string
	if err := json.Unmarshal(payload, &encoded); err != nil {
		return nil, fmt.Errorf("decode history payload: %w", err)
	}

	turns := make([]contractx.Turn, 0, len(encoded))
	for _, raw := range encoded {
		var turn contractx.Turn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func redisKey(prefix, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return strings.TrimSpace(prefix) + strings.TrimSpace(sessionID), nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
