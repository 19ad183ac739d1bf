package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")

	// ErrClassification marks a classifier capability failure; the
	// dispatcher recovers locally by falling back to a direct answer.
	ErrClassification = errors.New("classification failed")

	// ErrWorkerInvocation marks a worker adapter failure. Any lock held
	// by the session is cleared before the failure surfaces.
	ErrWorkerInvocation = errors.New("worker invocation failed")

	// ErrLockConflict is returned when a turn arrives while another turn
	// for the same session is still being processed.
	ErrLockConflict = errors.New("session is still processing a previous turn")

	// ErrWorkerUnknown marks a route to a worker absent from the registry.
	ErrWorkerUnknown = errors.New("unknown worker")
)
