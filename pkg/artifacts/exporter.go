package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/escalaflow/scalegate/pkg/engine"
)

// Downloader is satisfied by *engine.Client.
type Downloader interface {
	Export(ctx context.Context, format engine.ExportFormat) ([]byte, error)
}

// Artifact describes one stored report.
type Artifact struct {
	Format   engine.ExportFormat
	Hash     string
	Key      string
	Location string
	Size     int
	// Reused is true when identical content was already stored.
	Reused bool
}

// Exporter downloads reports from the engine and stores them by content.
type Exporter struct {
	source Downloader
	store  Store
	logger *slog.Logger
}

// NewExporter creates an exporter.
func NewExporter(source Downloader, store Store) *Exporter {
	return &Exporter{
		source: source,
		store:  store,
		logger: slog.Default().With("component", "artifacts"),
	}
}

func extension(f engine.ExportFormat) (string, string) {
	if f == engine.ExportMarkdown {
		return ".md", "text/markdown; charset=utf-8"
	}
	return ".html", "text/html; charset=utf-8"
}

// KeyFor returns the object key for a report with the given hash.
func KeyFor(format engine.ExportFormat, hash string) string {
	ext, _ := extension(format)
	return "escala-" + strings.TrimPrefix(hash, "sha256:") + ext
}

// Export downloads format and stores it. Identical reports share one object.
func (e *Exporter) Export(ctx context.Context, format engine.ExportFormat) (Artifact, error) {
	start := time.Now()
	data, err := e.source.Export(ctx, format)
	if err != nil {
		return Artifact{}, fmt.Errorf("download %s export: %w", format, err)
	}

	hash := ContentHash(data)
	a := Artifact{Format: format, Hash: hash, Key: KeyFor(format, hash), Size: len(data)}
	_, contentType := extension(format)

	exists, err := e.store.Exists(ctx, a.Key)
	if err != nil {
		e.logger.WarnContext(ctx, "export existence check failed, rewriting", "key", a.Key, "error", err)
	}
	a.Reused = exists

	a.Location, err = e.store.Put(ctx, a.Key, data, contentType)
	if err != nil {
		return Artifact{}, err
	}
	e.logger.InfoContext(ctx, "export stored",
		"format", format,
		"hash", hash,
		"location", a.Location,
		"bytes", a.Size,
		"reused", a.Reused,
		"duration", time.Since(start),
	)
	return a, nil
}
