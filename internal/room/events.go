package room

import (
	"time"

	"github.com/arung-agamani/roomd/internal/decode"
	"github.com/arung-agamani/roomd/internal/tree"
)

// EventKind distinguishes the three event shapes a Controller broadcasts,
// per spec §4.6.
type EventKind int

const (
	EventPlayer EventKind = iota
	EventTrackChanged
	EventTrackCleared
)

// Event is broadcast to every subscriber on every Player or playlist
// transition.
type Event struct {
	Kind EventKind

	// Player is set only for EventPlayer: the forwarded Player event.
	Player decode.Event

	// Track and Length are set only for EventTrackChanged.
	Track  *tree.Track
	Length time.Duration
}
