package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xxhash "github.com/OneOfOne/xxhash"
)

func cacheName(url string) string {
	return fmt.Sprintf("%x.m4a", xxhash.ChecksumString64(url))
}

func TestDownloader_EmptyURL(t *testing.T) {
	dl := NewDownloader(&DownloaderConfig{CacheDir: t.TempDir()})

	_, err := dl.Fetch(context.Background(), "")
	assert.Error(t, err)
}

// A non-empty cached file short-circuits the download entirely, so no
// yt-dlp binary is needed
func TestDownloader_CacheHit(t *testing.T) {
	cacheDir := t.TempDir()
	dl := NewDownloader(&DownloaderConfig{
		BinaryPath: "/nonexistent/yt-dlp",
		CacheDir:   cacheDir,
	})

	url := "https://example.com/watch?v=abc123"
	cached := filepath.Join(cacheDir, cacheName(url))
	require.NoError(t, os.WriteFile(cached, []byte("audio bytes"), 0o644))

	path, err := dl.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, cached, path)
}

// An empty cache file does not count as a hit; the fetch proceeds and fails
// against the missing binary instead of returning the empty file
func TestDownloader_EmptyCacheFileIgnored(t *testing.T) {
	cacheDir := t.TempDir()
	dl := NewDownloader(&DownloaderConfig{
		BinaryPath: "/nonexistent/yt-dlp",
		CacheDir:   cacheDir,
	})

	url := "https://example.com/watch?v=empty"
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, cacheName(url)), nil, 0o644))

	_, err := dl.Fetch(context.Background(), url)
	assert.Error(t, err)
}
