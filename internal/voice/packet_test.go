package voice_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/roomd/internal/voice"
)

func TestPacketRoundTrip(t *testing.T) {
	pkt := voice.Packet{
		Target:   0,
		Sequence: 123456789,
		Last:     true,
		Payload:  []byte{0xde, 0xad, 0xbe, 0xef},
	}

	decoded, err := voice.DecodePacket(pkt.Encode())
	require.NoError(t, err)
	require.Equal(t, pkt, decoded)
}

func TestPacketRoundTripEmptyPayload(t *testing.T) {
	pkt := voice.Packet{Target: 0, Sequence: 1, Last: false}

	decoded, err := voice.DecodePacket(pkt.Encode())
	require.NoError(t, err)
	require.Equal(t, 0, len(decoded.Payload))
	require.False(t, decoded.Last)
	require.Equal(t, uint64(1), decoded.Sequence)
}

func TestDecodePacketTooShort(t *testing.T) {
	_, err := voice.DecodePacket(nil)
	require.Error(t, err)
}

func TestPingRoundTrip(t *testing.T) {
	p := voice.Ping{Timestamp: 1735689600}
	decoded, err := voice.DecodePing(p.Encode())
	require.NoError(t, err)
	require.Equal(t, p, decoded)
}

func TestDecodePingWrongLength(t *testing.T) {
	_, err := voice.DecodePing([]byte{1, 2, 3})
	require.Error(t, err)
}
