// Package downloader fetches remote media to local disk: a plain HTTP
// GET written to a temp file and renamed into place once complete, so a
// reader racing the write never sees a partial file.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadFile downloads url to dest under ctx's deadline, via a
// dest+".tmp" staging file that is renamed into place on success. A nil
// client falls back to http.DefaultClient.
func DownloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	tempDest := dest + ".tmp"
	out, err := os.Create(tempDest)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer out.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("saving download: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempDest, dest); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
