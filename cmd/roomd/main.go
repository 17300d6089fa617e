package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arung-agamani/roomd/internal/api"
	"github.com/arung-agamani/roomd/internal/authtoken"
	"github.com/arung-agamani/roomd/internal/config"
	"github.com/arung-agamani/roomd/internal/graph"
	"github.com/arung-agamani/roomd/internal/room"
	"github.com/arung-agamani/roomd/internal/store"
	"github.com/arung-agamani/roomd/internal/tree"
	"github.com/arung-agamani/roomd/internal/voice"
	"github.com/arung-agamani/roomd/internal/voiceenc"
)

const (
	sampleRate = 48000
	// blockLen is 20ms of audio at 48kHz, matching the encoder's frame size
	// (frameMS below) so every tick produces exactly one OPUS frame. Larger
	// than §3's "typically 64" characterization of the block length
	// constant, but the graph places no upper bound on it and a block this
	// size avoids partial-frame buffering between mixer and encoder.
	blockLen       = 960
	frameMS        = 20
	requestTimeout = 5 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	fs := pflag.CommandLine
	config.RegisterFlags(fs)
	configPath := fs.String("config", "roomd.conf", "path to the roomd configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		slog.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting roomd",
		"data_dir", cfg.DataDir,
		"name", cfg.Name,
		"http_addr", cfg.HTTPAddr,
	)

	st, err := store.Open(filepath.Join(cfg.DataDir, "roomd.db"))
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	core := graph.NewCore(sampleRate, blockLen)
	out := core.AddOutput()
	roomInput := core.AddInputTo(out)
	go core.Run(ctx)

	roomID := "default"
	tracker, err := st.LoadRoom(ctx, roomID)
	if err != nil {
		slog.Info("no saved room state, starting with an empty playlist", "room", roomID)
		tracker = tree.NewDefaultTracker(tree.NewPlaylist(tree.Flatten))
	}

	controller := room.New(tracker, roomInput, sampleRate, newResolver(st, cfg.DataDir))
	go controller.Run(ctx)

	if cfg.MumbleHost != "" {
		if err := startVoiceLink(ctx, cfg, out); err != nil {
			slog.Error("failed to start voice link", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("no mumble endpoint configured, voice link disabled")
	}

	issuer := authtoken.New(authtoken.Config{
		Username:  cfg.OperatorUsername,
		Password:  cfg.OperatorPassword,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	})

	rooms := api.NewRegistry()
	rooms.Put(roomID, controller)

	server := api.New(rooms, issuer)

	httpErrCh := make(chan error, 1)
	go func() {
		slog.Info("http control api listening", "addr", cfg.HTTPAddr)
		httpErrCh <- server.Router().Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErrCh:
		if err != nil {
			slog.Error("http server error", "error", err)
		}
		cancel()
	}

	slog.Info("shutting down, persisting room state")
	saveCtx, saveCancel := context.WithTimeout(context.Background(), requestTimeout)
	defer saveCancel()
	if err := st.SaveRoom(saveCtx, roomID, tracker, nil); err != nil {
		slog.Error("failed to persist room state on shutdown", "error", err)
	}

	slog.Info("roomd stopped")
}

// startVoiceLink dials the configured voice server's TCP control and UDP
// voice endpoints and starts the encoder and keepalive loops. The
// handshake that would normally negotiate the UDP encryption key is the
// voice-chat wire protocol's job (spec §1's external collaborator); absent
// it, a session key is generated locally.
func startVoiceLink(ctx context.Context, cfg *config.Config, out *graph.OutputHandle) error {
	controlAddr := fmt.Sprintf("%s:%d", cfg.MumbleHost, cfg.MumblePort)
	control, err := net.Dial("tcp", controlAddr)
	if err != nil {
		return fmt.Errorf("dial control %s: %w", controlAddr, err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", controlAddr)
	if err != nil {
		control.Close()
		return fmt.Errorf("resolve voice addr %s: %w", controlAddr, err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		control.Close()
		return fmt.Errorf("generate voice session key: %w", err)
	}

	sink, err := voice.NewUDPSink(udpAddr, key)
	if err != nil {
		control.Close()
		return fmt.Errorf("connect voice sink: %w", err)
	}

	encLoop, err := voiceenc.New(out, sink, sampleRate, frameMS)
	if err != nil {
		control.Close()
		sink.Close()
		return fmt.Errorf("init encoder loop: %w", err)
	}

	go encLoop.Run(ctx)
	go voice.KeepAlive(ctx, control, sink)

	go func() {
		<-ctx.Done()
		control.Close()
		sink.Close()
	}()

	slog.Info("voice link established", "addr", controlAddr)
	return nil
}
