// Package decode implements the Player: a state machine driving an external
// ffmpeg decoder subprocess and streaming its PCM output into an audio graph
// Input node. See spec §4.4.
package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/arung-agamani/roomd/internal/graph"
)

// spawnDecoder starts ffmpeg seeking to offset in path and producing raw
// little-endian 16-bit signed interleaved PCM on stdout, per spec §6's
// decoder invocation line.
func spawnDecoder(ctx context.Context, path string, offset time.Duration, sampleRate int) (*exec.Cmd, io.ReadCloser, error) {
	args := []string{
		"-nostdin",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", path,
		"-ac", "2",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("decode: stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("decode: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("decode: spawn ffmpeg: %w", err)
	}

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				slog.Debug("ffmpeg decoder", "output", string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	return cmd, stdout, nil
}

// pumpFrames reads 4-byte little-endian PCM pairs from r, converts each to a
// symmetrically-normalized StereoFrame (i16 -> f32/32768), and pushes it into
// input. Returns nil on a clean EOF, ctx.Err() if cancelled, or the first
// read/push error encountered.
func pumpFrames(ctx context.Context, r io.Reader, input *graph.InputHandle) error {
	buf := make([]byte, 4)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		l := int16(uint16(buf[0]) | uint16(buf[1])<<8)
		rr := int16(uint16(buf[2]) | uint16(buf[3])<<8)
		frame := graph.StereoFrame{
			float32(l) / 32768,
			float32(rr) / 32768,
		}

		if err := input.Push(ctx, frame); err != nil {
			return err
		}
	}
}

// Probe runs ffprobe against path and returns the media's duration, per
// spec §6's media probe JSON format (format.duration, string-wrapped float).
func Probe(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", path)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("decode: ffprobe: %w", err)
	}

	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return 0, fmt.Errorf("decode: ffprobe parse: %w", err)
	}

	secs, err := strconv.ParseFloat(payload.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("decode: ffprobe duration: %w", err)
	}

	return time.Duration(secs * float64(time.Second)), nil
}
