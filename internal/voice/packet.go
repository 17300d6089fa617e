// Package voice implements the external voice-session wire shapes named by
// spec §6: OPUS packet framing, an encrypted UDP sink, and the control/voice
// keepalive ping. The handshake and session lifecycle of any specific voice
// protocol are out of scope per spec §1's non-goals.
package voice

import (
	"encoding/binary"
	"fmt"
)

// Packet is one encoded audio frame addressed to the voice server, per spec
// §6: a fixed target selector (always 0, normal talking voice), a
// monotonically increasing sequence number, a "last in utterance" flag, and
// the OPUS payload. Positional audio is declared by the wire format but
// always omitted.
type Packet struct {
	Target   uint8
	Sequence uint64
	Last     bool
	Payload  []byte
}

// Encode serializes p as target byte, varint sequence, a last-in-utterance
// flag byte, then the raw OPUS payload.
func (p Packet) Encode() []byte {
	buf := make([]byte, 1, 1+binary.MaxVarintLen64+1+len(p.Payload))
	buf[0] = p.Target

	var seqBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(seqBuf[:], p.Sequence)
	buf = append(buf, seqBuf[:n]...)

	if p.Last {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	return append(buf, p.Payload...)
}

// DecodePacket parses the wire format Encode produces.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < 1 {
		return Packet{}, fmt.Errorf("voice: packet too short")
	}

	target := data[0]
	rest := data[1:]

	seq, n := binary.Uvarint(rest)
	if n <= 0 {
		return Packet{}, fmt.Errorf("voice: malformed sequence number")
	}
	rest = rest[n:]

	if len(rest) < 1 {
		return Packet{}, fmt.Errorf("voice: missing last-in-utterance flag")
	}
	last := rest[0] != 0
	payload := rest[1:]

	return Packet{
		Target:   target,
		Sequence: seq,
		Last:     last,
		Payload:  payload,
	}, nil
}
