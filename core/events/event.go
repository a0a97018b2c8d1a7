package events

import (
	"log/slog"

	"stakevault/core/types"
)

// Event represents a structured state change emitted by the staking engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// broadcastable is satisfied by events that can flatten themselves into a
// generic attribute payload.
type broadcastable interface {
	Event() *types.Event
}

// SlogEmitter forwards events to a structured logger, expanding broadcast
// payloads into log attributes.
type SlogEmitter struct {
	log *slog.Logger
}

// NewSlogEmitter returns an emitter writing events to log. A nil logger falls
// back to slog.Default.
func NewSlogEmitter(log *slog.Logger) *SlogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &SlogEmitter{log: log}
}

// Emit implements the Emitter interface.
func (s *SlogEmitter) Emit(ev Event) {
	if s == nil || s.log == nil || ev == nil {
		return
	}
	b, ok := ev.(broadcastable)
	if !ok {
		s.log.Info("event", slog.String("type", ev.EventType()))
		return
	}
	payload := b.Event()
	attrs := make([]any, 0, len(payload.Attributes)+1)
	attrs = append(attrs, slog.String("type", payload.Type))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	s.log.Info("event", attrs...)
}
