// Package archive exports settled-bet history to object storage as JSON
// lines, one object per run, for audit retention beyond the database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// defaultMultipartThreshold is the export size above which the upload goes
// through the multipart path instead of a single PutObject.
const defaultMultipartThreshold = 8 * 1024 * 1024

// BlobWriter is the upload half of the blob store.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver periodically exports settlements newer than the last export.
type Archiver struct {
	history  domain.SettlementStore
	writer   BlobWriter
	prefix   string
	interval time.Duration
	logger   *slog.Logger

	lastExport         time.Time
	multipartThreshold int64
}

// New creates an Archiver writing under the given key prefix.
func New(history domain.SettlementStore, writer BlobWriter, prefix string, interval time.Duration, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		history:            history,
		writer:             writer,
		prefix:             prefix,
		interval:           interval,
		logger:             logger.With(slog.String("component", "archiver")),
		lastExport:         time.Now().UTC(),
		multipartThreshold: defaultMultipartThreshold,
	}
}

// Run exports on the configured interval until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("settlement archiver started", slog.Duration("interval", a.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Export(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Export uploads all settlements since the previous export as one JSON-lines
// object. A run with nothing to export uploads no object. Large exports go
// through the multipart upload path.
func (a *Archiver) Export(ctx context.Context) error {
	since := a.lastExport
	now := time.Now().UTC()

	settlements, err := a.history.ListSince(ctx, since)
	if err != nil {
		return fmt.Errorf("archive: list settlements: %w", err)
	}
	if len(settlements) == 0 {
		a.lastExport = now
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, s := range settlements {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("archive: encode settlement %d: %w", s.ID, err)
		}
	}

	key := fmt.Sprintf("%s/settlements-%s.jsonl", a.prefix, now.Format("20060102T150405Z"))
	size := int64(buf.Len())
	if size >= a.multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, &buf, a.multipartThreshold)
	} else {
		err = a.writer.Put(ctx, key, &buf, "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}

	a.lastExport = now
	a.logger.Info("settlements archived",
		slog.String("key", key),
		slog.Int("count", len(settlements)),
		slog.Int64("bytes", size),
	)
	return nil
}
