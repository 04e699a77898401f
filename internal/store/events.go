package store

// EventEmitter publishes change notifications without the caller depending
// on the transport. sse.Manager is the production implementation.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// Emit implements EventEmitter.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}
