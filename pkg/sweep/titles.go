package sweep

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// EnsureTitleIndex makes sure a title listing exists at path. When it is
// missing and source is set, the listing is downloaded; a ".gz" source is
// decompressed on the way. The file appears only once it is complete.
func EnsureTitleIndex(ctx context.Context, client *http.Client, path, source string, log *zap.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if source == "" {
		return fmt.Errorf("title listing %s not found and no download source given", path)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Downloading title listing", zap.String("source", source), zap.String("path", path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download titles: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download titles: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(req.URL.Path, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".titles-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write titles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
