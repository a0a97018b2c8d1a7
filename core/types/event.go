package types

// Event represents a typed event emitted during state transitions. The
// attribute map is flattened to strings so downstream indexers can consume
// events without knowing the originating module's types.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
