package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	upstashx "github.com/pocketsage/pocketsage/pkg/upstash"
)

// fakeRedis is a minimal in-memory Upstash REST endpoint covering the
// commands the stores issue: GET, SET, DEL, LLEN, RPUSH, LRANGE.
type fakeRedis struct {
	mu       sync.Mutex
	strings  map[string]string
	lists    map[string][]string
	commands [][]any
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
	}
}

func (f *fakeRedis) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var command []any
		if err := json.NewDecoder(r.Body).Decode(&command); err != nil {
			t.Errorf("decode command: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		f.commands = append(f.commands, command)

		name, _ := command[0].(string)
		switch name {
		case "GET":
			key := command[1].(string)
			value, ok := f.strings[key]
			if !ok {
				fmt.Fprint(w, `{"result":null}`)
				return
			}
			encoded, _ := json.Marshal(value)
			fmt.Fprintf(w, `{"result":%s}`, encoded)
		case "SET":
			f.strings[command[1].(string)] = command[2].(string)
			fmt.Fprint(w, `{"result":"OK"}`)
		case "DEL":
			key := command[1].(string)
			delete(f.strings, key)
			delete(f.lists, key)
			fmt.Fprint(w, `{"result":1}`)
		case "LLEN":
			fmt.Fprintf(w, `{"result":%d}`, len(f.lists[command[1].(string)]))
		case "RPUSH":
			key := command[1].(string)
			f.lists[key] = append(f.lists[key], command[2].(string))
			fmt.Fprintf(w, `{"result":%d}`, len(f.lists[key]))
		case "LRANGE":
			key := command[1].(string)
			start := int(command[2].(float64))
			items := f.lists[key]
			if start < 0 {
				start += len(items)
				if start < 0 {
					start = 0
				}
			}
			if start > len(items) {
				start = len(items)
			}
			encoded, _ := json.Marshal(items[start:])
			fmt.Fprintf(w, `{"result":%s}`, encoded)
		default:
			fmt.Fprintf(w, `{"error":"unsupported command %s"}`, name)
		}
	}
}

func (f *fakeRedis) commandNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.commands))
	for _, cmd := range f.commands {
		name, _ := cmd[0].(string)
		names = append(names, name)
	}
	return names
}

func newTestUpstashClient(t *testing.T, redis *fakeRedis) *upstashx.Client {
	t.Helper()
	server := httptest.NewServer(redis.handler(t))
	t.Cleanup(server.Close)

	client, err := upstashx.NewClient(
		upstashx.Config{URL: server.URL, Token: "token"},
		upstashx.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestUpstashLockStoreRoundTrip(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	store, err := NewUpstashLockStore(newTestUpstashClient(t, redis))
	if err != nil {
		t.Fatalf("NewUpstashLockStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "session-1"); !errors.Is(err, ErrLockNotFound) {
		t.Fatalf("expected ErrLockNotFound, got %v", err)
	}

	lock, err := store.Set(ctx, "session-1", string(contractx.WorkerBudgetPlanner), 5*time.Minute)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if lock.SessionID != "session-1" {
		t.Fatalf("unexpected session: %q", lock.SessionID)
	}

	got, err := store.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.WorkerName != string(contractx.WorkerBudgetPlanner) {
		t.Fatalf("round trip worker = %q", got.WorkerName)
	}
	if !got.ExpiresAt.Equal(lock.ExpiresAt) {
		t.Fatalf("round trip expiry = %v, want %v", got.ExpiresAt, lock.ExpiresAt)
	}

	if err := store.Clear(ctx, "session-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Get(ctx, "session-1"); !errors.Is(err, ErrLockNotFound) {
		t.Fatalf("expected ErrLockNotFound after clear, got %v", err)
	}
}

func TestUpstashLockStoreSetCommandShape(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	store, err := NewUpstashLockStore(newTestUpstashClient(t, redis))
	if err != nil {
		t.Fatalf("NewUpstashLockStore() error = %v", err)
	}

	if _, err := store.Set(context.Background(), "session-2", string(contractx.WorkerSavingsPlanner), 90*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	redis.mu.Lock()
	defer redis.mu.Unlock()
	if len(redis.commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(redis.commands))
	}
	cmd := redis.commands[0]
	if cmd[0] != "SET" || cmd[1] != defaultLockKeyPrefix+"session-2" {
		t.Fatalf("unexpected command head: %v", cmd[:2])
	}
	if cmd[3] != "EX" || cmd[4] != float64(90) {
		t.Fatalf("expected EX 90, got %v %v", cmd[3], cmd[4])
	}
}

func TestUpstashLockStoreExpiredPayloadReadsAsAbsent(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	redis := newFakeRedis()
	store, err := NewUpstashLockStore(
		newTestUpstashClient(t, redis),
		WithUpstashLockClock(func() time.Time { return clock }),
	)
	if err != nil {
		t.Fatalf("NewUpstashLockStore() error = %v", err)
	}

	stale := contractx.Lock{
		SessionID:  "session-3",
		WorkerName: string(contractx.WorkerRecurringScheduler),
		AcquiredAt: clock.Add(-10 * time.Minute),
		ExpiresAt:  clock.Add(-5 * time.Minute),
	}
	payload, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal stale lock: %v", err)
	}
	redis.strings[defaultLockKeyPrefix+"session-3"] = string(payload)

	if _, err := store.Get(context.Background(), "session-3"); !errors.Is(err, ErrLockNotFound) {
		t.Fatalf("expected stale lock to read as absent, got %v", err)
	}

	// The stale key is deleted on read.
	names := redis.commandNames()
	if names[len(names)-1] != "DEL" {
		t.Fatalf("expected trailing DEL, got %v", names)
	}
}

func TestUpstashHistoryStoreAppendAndRecent(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	store, err := NewUpstashHistoryStore(newTestUpstashClient(t, redis))
	if err != nil {
		t.Fatalf("NewUpstashHistoryStore() error = %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		turn := &contractx.Turn{
			ID:          fmt.Sprintf("t-%d", i),
			SessionID:   "session-4",
			UserInput:   fmt.Sprintf("msg %d", i),
			ProducedBy:  []string{string(contractx.WorkerBudgetPlanner)},
			AgentOutput: fmt.Sprintf("reply %d", i),
		}
		if err := store.Append(ctx, turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if turn.SequenceNo != i+1 {
			t.Fatalf("expected sequence %d, got %d", i+1, turn.SequenceNo)
		}
	}

	turns, err := store.Recent(ctx, "session-4", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected window of 2, got %d", len(turns))
	}
	if turns[0].ID != "t-1" || turns[1].ID != "t-2" {
		t.Fatalf("unexpected window: %q %q", turns[0].ID, turns[1].ID)
	}

	all, err := store.Recent(ctx, "session-4", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected full log, got %d", len(all))
	}
}

func TestUpstashHistoryStoreForWorker(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	store, err := NewUpstashHistoryStore(newTestUpstashClient(t, redis))
	if err != nil {
		t.Fatalf("NewUpstashHistoryStore() error = %v", err)
	}
	ctx := context.Background()

	producers := []string{
		string(contractx.WorkerBudgetPlanner),
		string(contractx.WorkerSavingsPlanner),
		string(contractx.WorkerBudgetPlanner),
	}
	for i, producer := range producers {
		err := store.Append(ctx, &contractx.Turn{
			ID:         fmt.Sprintf("t-%d", i),
			SessionID:  "session-5",
			ProducedBy: []string{producer},
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	scoped, err := store.ForWorker(ctx, "session-5", string(contractx.WorkerBudgetPlanner), 10)
	if err != nil {
		t.Fatalf("ForWorker() error = %v", err)
	}
	if len(scoped) != 2 || scoped[0].ID != "t-0" || scoped[1].ID != "t-2" {
		t.Fatalf("unexpected scoped view: %+v", scoped)
	}

	if _, err := store.ForWorker(ctx, "session-5", "  ", 10); !errors.Is(err, ErrInvalidWorker) {
		t.Fatalf("expected ErrInvalidWorker, got %v", err)
	}
}

func TestUpstashHistoryStoreClearSession(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	store, err := NewUpstashHistoryStore(newTestUpstashClient(t, redis))
	if err != nil {
		t.Fatalf("NewUpstashHistoryStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Append(ctx, &contractx.Turn{ID: "t-0", SessionID: "session-6"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.ClearSession(ctx, "session-6"); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}

	turns, err := store.Recent(ctx, "session-6", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected cleared log, got %d turns", len(turns))
	}
}

func TestUpstashStoreInvalidSession(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	client := newTestUpstashClient(t, redis)

	locks, err := NewUpstashLockStore(client)
	if err != nil {
		t.Fatalf("NewUpstashLockStore() error = %v", err)
	}
	if _, err := locks.Get(context.Background(), "   "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	history, err := NewUpstashHistoryStore(client)
	if err != nil {
		t.Fatalf("NewUpstashHistoryStore() error = %v", err)
	}
	if _, err := history.Recent(context.Background(), "  ", 5); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if len(redis.commandNames()) != 0 {
		t.Fatalf("validation failures must not hit redis: %v", redis.commandNames())
	}
}
