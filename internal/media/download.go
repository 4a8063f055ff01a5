package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"linebridge/internal/logging"
)

// Downloader fetches attachments over HTTP into local media folders.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

// NewDownloader builds a downloader with an explicit client timeout. The
// timeout bounds the whole request including the body copy.
func NewDownloader(timeout time.Duration, logger *slog.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Download fetches url and writes it to dir/filename, creating dir as needed.
// It returns the written path. All failures wrap ErrFetch; there is no
// built-in retry, callers decide whether a second attempt is worth it.
func (d *Downloader) Download(ctx context.Context, url, dir, filename string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: empty url", ErrFetch)
	}
	filename = SafeFilename(filename)
	if filename == "" {
		return "", fmt.Errorf("%w: empty filename", ErrFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d fetching %s", ErrFetch, resp.StatusCode, url)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create media dir: %v", ErrFetch, err)
	}

	target := filepath.Join(dir, filename)
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrFetch, target, err)
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("%w: write %s: %v", ErrFetch, target, err)
	}
	if closeErr != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("%w: close %s: %v", ErrFetch, target, closeErr)
	}

	d.logger.Debug("attachment fetched",
		logging.String("path", target),
		logging.Int64("bytes", written))
	return target, nil
}
