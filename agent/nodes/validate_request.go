package dispatchnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidUser    = errors.New("user id is empty")
)

type GraphInput struct {
	SessionID string
	UserID    string
	Text      string
}

type GraphOutput struct {
	Reply string
}

// Outcome is one invoked worker's (or the direct-answer path's) result
// for the current turn. Err marks a worker invocation failure; the
// result then carries the user-facing apology text.
type Outcome struct {
	Worker contractx.WorkerName
	Result contractx.WorkerResult
	Err    error
}

// Producer names the history entry's producer for this outcome.
func (o Outcome) Producer() string {
	if o.Worker == "" {
		return contractx.DirectAnswerProducer
	}
	return string(o.Worker)
}

type GraphState struct {
	SessionID string
	UserID    string
	Text      string
	Now       time.Time

	// Lock is the session's non-expired lock, if any, read at the start
	// of the turn.
	Lock *contractx.Lock

	// LockedRoute marks that Routes came from the lock bypass rather
	// than classification.
	LockedRoute bool
	Routes      []contractx.Route

	// DirectAnswer is set when the classifier answered without
	// delegation (or as the malformed-classification fallback).
	DirectAnswer string

	History  []contractx.Turn
	Outcomes []Outcome
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrInvalidUser
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		UserID:    userID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}
