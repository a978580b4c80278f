package images

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Archiver streams zip archives of re-encoded images.
type Archiver struct {
	client *Client
	logger *zap.Logger
}

// NewArchiver constructs an Archiver.
func NewArchiver(client *Client, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{client: client, logger: logger}
}

// BuildZip downloads each url in order, re-encodes it to PNG, and
// writes it into a zip on w as image_<n>.png, where n is the 1-based
// position in urls. An image that fails to download or re-encode is
// skipped, leaving a numbering gap; the archive itself only fails on a
// write error to w.
func (a *Archiver) BuildZip(ctx context.Context, w io.Writer, urls []string) error {
	zw := zip.NewWriter(w)

	for i, url := range urls {
		data, err := a.client.FetchImage(ctx, url)
		if err != nil {
			a.logger.Warn("image download failed, skipping",
				zap.String("url", url), zap.Error(err))
			continue
		}
		encoded, err := ReencodePNG(data)
		if err != nil {
			a.logger.Warn("image re-encode failed, skipping",
				zap.String("url", url), zap.Error(err))
			continue
		}
		entry, err := zw.Create(fmt.Sprintf("image_%d.png", i+1))
		if err != nil {
			return fmt.Errorf("create zip entry: %w", err)
		}
		if _, err := entry.Write(encoded); err != nil {
			return fmt.Errorf("write zip entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}
