package state

import (
	"context"
	"errors"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

var (
	ErrLockNotFound   = errors.New("session lock not found")
	ErrNilTurn        = errors.New("turn is nil")
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidWorker  = errors.New("worker name is empty")
)

// LockStore holds at most one lock per session. Get must treat an
// expired lock identically to an absent one; lazy expiry is sufficient.
type LockStore interface {
	Get(ctx context.Context, sessionID string) (*contractx.Lock, error)
	Set(ctx context.Context, sessionID string, workerName string, ttl time.Duration) (*contractx.Lock, error)
	Clear(ctx context.Context, sessionID string) error
}

// HistoryStore is the append-only per-session turn log. Append assigns
// the turn's sequence number; turns are never edited or removed except
// by ClearSession.
type HistoryStore interface {
	Append(ctx context.Context, turn *contractx.Turn) error
	Recent(ctx context.Context, sessionID string, maxTurns int) ([]contractx.Turn, error)
	ForWorker(ctx context.Context, sessionID string, workerName string, maxTurns int) ([]contractx.Turn, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// filterForWorker keeps the turns a worker participated in, preserving
// chronological order. It also matches the direct-answer producer so a
// store can serve scoped views for the no-worker path.
func filterForWorker(turns []contractx.Turn, workerName string, maxTurns int) []contractx.Turn {
	scoped := make([]contractx.Turn, 0, len(turns))
	for _, turn := range turns {
		for _, producer := range turn.ProducedBy {
			if producer == workerName {
				scoped = append(scoped, turn)
				break
			}
		}
	}
	return tail(scoped, maxTurns)
}

func tail(turns []contractx.Turn, maxTurns int) []contractx.Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
