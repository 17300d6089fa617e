package voice_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arung-agamani/roomd/internal/voice"
	"github.com/arung-agamani/roomd/internal/voiceenc"
)

func TestUDPSinkSendIsDecryptable(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	key := make([]byte, chacha20poly1305.KeySize)
	for i := range key {
		key[i] = byte(i)
	}

	sink, err := voice.NewUDPSink(listener.LocalAddr().(*net.UDPAddr), key)
	require.NoError(t, err)
	defer sink.Close()

	pkt := voiceenc.Packet{Sequence: 7, Payload: []byte{1, 2, 3}, Terminator: true}
	require.NoError(t, sink.Send(context.Background(), pkt))

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, err := listener.Read(buf)
	require.NoError(t, err)

	aead, err := chacha20poly1305.New(key)
	require.NoError(t, err)

	sealed := buf[:n]
	nonce := sealed[:chacha20poly1305.NonceSize]
	ciphertext := sealed[chacha20poly1305.NonceSize:]

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	require.NoError(t, err)

	decoded, err := voice.DecodePacket(plain)
	require.NoError(t, err)
	require.Equal(t, uint64(7), decoded.Sequence)
	require.True(t, decoded.Last)
	require.Equal(t, []byte{1, 2, 3}, decoded.Payload)
}
