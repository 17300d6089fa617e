package decode

import "time"

// EventKind distinguishes the two event shapes a Player emits.
type EventKind int

const (
	EventPlaying EventKind = iota
	EventPaused
)

// Event is broadcast to every subscriber whenever the Player transitions
// state, per spec §4.4's event channel.
type Event struct {
	Kind EventKind
	Now  time.Time
	Pos  time.Duration
	// Stopped is only meaningful for EventPaused: true means the decoder
	// reached EOF, false means an operator paused.
	Stopped bool
}
