package audit

import "context"

// Store persists audit entries. Append-only: no update or delete operations
// exist on purpose.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Sink receives a copy of every persisted entry for fan-out (e.g. Kafka).
// Sink failures are logged and never affect persistence or the caller.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}
