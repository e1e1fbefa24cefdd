package domain

// EventKind classifies a decoded stream event.
type EventKind int

const (
	EventToken EventKind = iota
	EventStreamStarted
	EventStreamEnded
	EventStreamError
)

// StreamEvent is one decoded event from the backend token stream. Events live
// only for the duration of a single exchange and are never persisted.
type StreamEvent struct {
	Kind EventKind
	// Text holds the token content for EventToken and the diagnostic text
	// for EventStreamError. Empty for the lifecycle markers.
	Text string
}
