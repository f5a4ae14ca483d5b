package gtfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Downloader fetches the schedule archive when it is not already on disk.
type Downloader struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// NewDownloader creates a Downloader for the given archive URL.
func NewDownloader(url string, logger *slog.Logger) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 5 * time.Minute},
		url:    url,
		logger: logger,
	}
}

// Ensure makes sure an archive exists at path, downloading it if needed.
// The download is written to a temp file next to path and renamed into
// place so a partial file is never left at path.
func (d *Downloader) Ensure(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat archive: %w", err)
	}
	if d.url == "" {
		return fmt.Errorf("archive %s not found and no download URL configured", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	d.logger.Info("downloading GTFS archive", "url", d.url)
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(dir, "gtfs-*.zip")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmpFile, resp.Body)
	if cerr := tmpFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpFile.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), path); err != nil {
		os.Remove(tmpFile.Name())
		return fmt.Errorf("rename archive: %w", err)
	}

	d.logger.Info("GTFS archive downloaded",
		"path", path,
		"size_mb", fmt.Sprintf("%.1f", float64(written)/(1024*1024)),
	)
	return nil
}
