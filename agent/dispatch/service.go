package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	nodex "github.com/pocketsage/pocketsage/agent/nodes"
	statex "github.com/pocketsage/pocketsage/agent/state"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrInvalidUser    = nodex.ErrInvalidUser
)

const (
	defaultLockTTL       = 5 * time.Minute
	defaultHistoryWindow = 20
	defaultWorkerTimeout = 60 * time.Second
)

type Config struct {
	LockTTL       time.Duration `envconfig:"LOCK_TTL" split_words:"true" default:"5m"`
	HistoryWindow int           `envconfig:"HISTORY_WINDOW" split_words:"true" default:"20"`
	WorkerTimeout time.Duration `envconfig:"WORKER_TIMEOUT" split_words:"true" default:"60s"`
}

// Dispatcher routes each turn either straight to the worker holding the
// session's lock or through classification, then applies the lock rule
// and records the turn. All session state lives in the injected stores,
// so dispatcher replicas share nothing but those stores.
type Dispatcher struct {
	locks      statex.LockStore
	history    statex.HistoryStore
	classifier contractx.Classifier
	registry   contractx.Registry

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	lockTTL       time.Duration
	historyWindow int
	workerTimeout time.Duration

	now func() time.Time

	// Turns for one session are strictly sequential; a second turn
	// arriving mid-flight is rejected rather than raced.
	mu   sync.Mutex
	busy map[string]struct{}
}

func New(
	locks statex.LockStore,
	history statex.HistoryStore,
	classifier contractx.Classifier,
	registry contractx.Registry,
	cfg Config,
) (*Dispatcher, error) {
	if locks == nil {
		return nil, errors.New("lock store is required")
	}
	if history == nil {
		return nil, errors.New("history store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if registry == nil {
		return nil, errors.New("worker registry is required")
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	workerTimeout := cfg.WorkerTimeout
	if workerTimeout <= 0 {
		workerTimeout = defaultWorkerTimeout
	}

	d := &Dispatcher{
		locks:         locks,
		history:       history,
		classifier:    classifier,
		registry:      registry,
		lockTTL:       lockTTL,
		historyWindow: historyWindow,
		workerTimeout: workerTimeout,
		now:           time.Now,
		busy:          make(map[string]struct{}),
	}

	graphRunner, err := d.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	d.graphRunner = graphRunner

	return d, nil
}

// HandleTurn processes one user turn and returns the composed reply.
// A concurrent turn for the same session fails with ErrLockConflict.
func (d *Dispatcher) HandleTurn(ctx context.Context, sessionID, userID, text string) (string, error) {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return "", ErrInvalidSession
	}

	if !d.beginTurn(key) {
		return "", contractx.ErrLockConflict
	}
	defer d.endTurn(key)

	out, err := d.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		UserID:    userID,
		Text:      text,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidSession) || errors.Is(err, ErrInvalidUser) || errors.Is(err, ErrInvalidMessage) {
			return "", err
		}
		return d.recoverFailedTurn(ctx, key, text, err), err
	}
	return out.Reply, nil
}

// ResetSession clears a session's history and any lock. This is the
// only way turns are ever removed.
func (d *Dispatcher) ResetSession(ctx context.Context, sessionID string) error {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return ErrInvalidSession
	}
	if err := d.locks.Clear(ctx, key); err != nil {
		return err
	}
	return d.history.ClearSession(ctx, key)
}

// recoverFailedTurn guarantees the failure contract: no stale lock
// survives a turn that never produced a result, and the conversation
// gets an error turn so it stays coherent. Both are best effort; the
// returned text is always the generic failure reply.
func (d *Dispatcher) recoverFailedTurn(ctx context.Context, sessionID, text string, cause error) string {
	cleanupCtx := context.WithoutCancel(ctx)

	if err := d.locks.Clear(cleanupCtx, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to clear lock after turn failure")
	}

	turn := &contractx.Turn{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		UserInput:   strings.TrimSpace(text),
		ProducedBy:  []string{contractx.DirectAnswerProducer},
		AgentOutput: nodex.WorkerFailureReply,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.history.Append(cleanupCtx, turn); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to append error turn")
	}

	log.Error().Err(cause).Str("session_id", sessionID).Msg("turn failed")
	return nodex.WorkerFailureReply
}

func (d *Dispatcher) beginTurn(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, inFlight := d.busy[sessionID]; inFlight {
		return false
	}
	d.busy[sessionID] = struct{}{}
	return true
}

func (d *Dispatcher) endTurn(sessionID string) {
	d.mu.Lock()
	delete(d.busy, sessionID)
	d.mu.Unlock()
}
