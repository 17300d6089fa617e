package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// PingInterval is the keepalive cadence spec §6 mandates on both the TCP
// control stream and the UDP voice stream.
const PingInterval = 2 * time.Second

// Ping is a keepalive carrying the sender's Unix timestamp in seconds.
type Ping struct {
	Timestamp uint64
}

// Encode serializes a Ping as its 8-byte big-endian timestamp.
func (p Ping) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, p.Timestamp)
	return buf
}

// DecodePing parses the wire format Ping.Encode produces.
func DecodePing(data []byte) (Ping, error) {
	if len(data) != 8 {
		return Ping{}, fmt.Errorf("voice: ping must be 8 bytes, got %d", len(data))
	}
	return Ping{Timestamp: binary.BigEndian.Uint64(data)}, nil
}

// KeepAlive writes a Ping to both control and voice every PingInterval until
// ctx is cancelled, per spec §6.
func KeepAlive(ctx context.Context, control, voice io.Writer) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := Ping{Timestamp: uint64(time.Now().Unix())}.Encode()

			if _, err := control.Write(ping); err != nil {
				slog.Warn("voice: control keepalive failed", "error", err)
			}
			if _, err := voice.Write(ping); err != nil {
				slog.Warn("voice: voice keepalive failed", "error", err)
			}
		}
	}
}
