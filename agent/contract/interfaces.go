package contract

import "context"

// Classifier wraps the opaque language-understanding capability: given a
// turn, recent history, and the worker catalog it picks zero or more
// workers, or answers directly.
type Classifier interface {
	Classify(ctx context.Context, userInput string, history []Turn, catalog []WorkerDescriptor) (Classification, error)
}

// Worker is the single capability every task handler exposes to the
// dispatcher, regardless of internal complexity.
type Worker interface {
	Name() WorkerName
	Invoke(ctx context.Context, req WorkerRequest) (WorkerResult, error)
}

// Registry is the fixed worker table built at startup. No runtime mutation.
type Registry interface {
	Lookup(name WorkerName) (Worker, bool)
	Catalog() []WorkerDescriptor
}
