package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/arung-agamani/roomd/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEvent is the wire shape relayed to browser clients, decoupled from
// room.Event so the domain type stays free of JSON tags.
type wsEvent struct {
	Kind          string  `json:"kind"`
	PosSeconds    float64 `json:"pos_seconds,omitempty"`
	Stopped       bool    `json:"stopped,omitempty"`
	TrackID       string  `json:"track_id,omitempty"`
	TrackTitle    string  `json:"track_title,omitempty"`
	LengthSeconds float64 `json:"length_seconds,omitempty"`
}

func toWSEvent(ev room.Event) wsEvent {
	switch ev.Kind {
	case room.EventPlayer:
		return wsEvent{
			Kind:       "player",
			PosSeconds: ev.Player.Pos.Seconds(),
			Stopped:    ev.Player.Stopped,
		}
	case room.EventTrackChanged:
		out := wsEvent{Kind: "track_changed", LengthSeconds: ev.Length.Seconds()}
		if ev.Track != nil {
			out.TrackID = ev.Track.ID
			out.TrackTitle = ev.Track.Title
		}
		return out
	default:
		return wsEvent{Kind: "track_cleared"}
	}
}

// events handles GET /rooms/:id/events, upgrading to a websocket that
// relays the room's event broadcast until the client disconnects, per
// spec §6's "Room event stream".
func (s *Server) events(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("room events: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, ch := ctrl.Subscribe()
	defer ctrl.Unsubscribe(id)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(toWSEvent(ev)); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
