package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-resty/resty/v2"
)

var httpClient = resty.New()

// Resolve returns a local, playable file path for p, downloading and
// transcoding into the cache if necessary. A cache hit short-circuits
// straight to the existing file.
func Resolve(ctx context.Context, dataDir string, p Provider) (string, error) {
	cachePath := CachePath(dataDir, p.ID)
	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	switch p.Source.Kind {
	case SourceLocal:
		return p.Source.Ref, nil
	case SourceURL:
		return fetchURL(ctx, p.Source.Ref, cachePath)
	case SourceYouTube:
		return fetchYouTube(ctx, p.Source.Ref, cachePath)
	default:
		return "", fmt.Errorf("media: unknown source kind %d", p.Source.Kind)
	}
}

func fetchURL(ctx context.Context, url, cachePath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return "", fmt.Errorf("media: cache dir: %w", err)
	}

	tmp := cachePath + ".download"
	resp, err := httpClient.R().SetContext(ctx).SetOutput(tmp).Get(url)
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("media: download %s: %w", url, err)
	}
	if resp.IsError() {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("media: download %s: status %s", url, resp.Status())
	}

	if err := convertToFLAC(ctx, tmp, cachePath); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	_ = os.Remove(tmp)
	return cachePath, nil
}

func fetchYouTube(ctx context.Context, videoID, cachePath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return "", fmt.Errorf("media: cache dir: %w", err)
	}

	args := []string{
		"-x", "--audio-format", "flac",
		"-o", cachePath,
		"https://www.youtube.com/watch?v=" + videoID,
	}

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("media: yt-dlp failed: %w (%s)", err, stderr.String())
	}
	return cachePath, nil
}

func convertToFLAC(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", inputPath, "-vn", outputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: ffmpeg convert: %w (%s)", err, stderr.String())
	}
	return nil
}
