package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	xxhash "github.com/OneOfOne/xxhash"

	"github.com/chordscape/chordscape/logging"
)

// DownloaderConfig holds downloader configuration
type DownloaderConfig struct {
	BinaryPath string        `json:"binary_path"` // yt-dlp binary
	CacheDir   string        `json:"cache_dir"`
	Format     string        `json:"format"`  // yt-dlp format selector
	Timeout    time.Duration `json:"timeout"` // 0 = no limit
}

// DefaultDownloaderConfig returns the standard downloader settings
func DefaultDownloaderConfig() *DownloaderConfig {
	return &DownloaderConfig{
		BinaryPath: "yt-dlp",
		CacheDir:   filepath.Join(os.TempDir(), "chordscape-cache"),
		Format:     "bestaudio[ext=m4a]/bestaudio",
		Timeout:    5 * time.Minute,
	}
}

// Downloader fetches remote audio through yt-dlp into a local cache. The
// pipeline consumes only the resulting file path and is agnostic to how it
// was obtained.
type Downloader struct {
	config *DownloaderConfig
	logger logging.Logger
}

// NewDownloader creates a downloader; nil config selects the defaults
func NewDownloader(config *DownloaderConfig) *Downloader {
	if config == nil {
		config = DefaultDownloaderConfig()
	}
	return &Downloader{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "downloader",
		}),
	}
}

// Fetch returns a local path to the audio of url, downloading it unless a
// cached copy exists. Cache files are keyed by a hash of the URL, so
// repeated analyses of the same source skip the network entirely.
func (dl *Downloader) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("empty URL")
	}

	if err := os.MkdirAll(dl.config.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	target := filepath.Join(dl.config.CacheDir, fmt.Sprintf("%x.m4a", xxhash.ChecksumString64(url)))
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		dl.logger.Debug("cache hit", logging.Fields{"url": url, "path": target})
		return target, nil
	}

	fetchCtx := ctx
	if dl.config.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, dl.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-f", dl.config.Format,
		"--no-playlist",
		"-o", target,
		url,
	}

	dl.logger.Info("downloading audio", logging.Fields{"url": url})
	start := time.Now()

	cmd := exec.CommandContext(fetchCtx, dl.config.BinaryPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// A partial file must not poison the cache
		os.Remove(target)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("download failed: %w, output: %s", err, string(output))
		}
		return "", fmt.Errorf("download failed: %w", err)
	}

	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		os.Remove(target)
		return "", fmt.Errorf("download produced no file for %s", url)
	}

	dl.logger.Info("download complete", logging.Fields{
		"url":     url,
		"path":    target,
		"elapsed": time.Since(start).Seconds(),
	})
	return target, nil
}
