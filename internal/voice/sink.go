package voice

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arung-agamani/roomd/internal/voiceenc"
)

// UDPSink implements voiceenc.Sink, sealing each encoded packet with
// chacha20poly1305 before writing it to a UDP connection, per spec §1's
// "encrypted UDP transport".
type UDPSink struct {
	conn *net.UDPConn
	aead cipher.AEAD
}

// NewUDPSink dials raddr and seals outgoing packets with key, which must be
// exactly chacha20poly1305.KeySize bytes.
func NewUDPSink(raddr *net.UDPAddr, key []byte) (*UDPSink, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("voice: init aead: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("voice: dial udp: %w", err)
	}

	return &UDPSink{conn: conn, aead: aead}, nil
}

// Send seals pkt's wire encoding and writes it to the UDP connection.
func (s *UDPSink) Send(ctx context.Context, pkt voiceenc.Packet) error {
	wire := Packet{
		Target:   0,
		Sequence: pkt.Sequence,
		Last:     pkt.Terminator,
		Payload:  pkt.Payload,
	}.Encode()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("voice: generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, wire, nil)

	if _, err := s.conn.Write(sealed); err != nil {
		return fmt.Errorf("voice: udp write: %w", err)
	}
	return nil
}

// Write sends raw bytes over the underlying UDP connection unsealed,
// satisfying io.Writer so the same connection can carry KeepAlive pings.
func (s *UDPSink) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Close closes the underlying UDP connection.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}
