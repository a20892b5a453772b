// Package workers runs background jobs next to the HTTP server.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"phrase-game/models"

	"github.com/gosimple/slug"
)

// ObjectStore receives archived round results.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ResultSource is the part of the history service the archiver uses.
type ResultSource interface {
	PendingArchive(ctx context.Context, limit int) ([]models.RoundResult, error)
	MarkArchived(ctx context.Context, roundID uint) error
}

// TitleSource names the season the archive is filed under.
type TitleSource interface {
	Title(ctx context.Context) (string, error)
}

const archiveBatch = 20

// ArchiveWorker copies closed round results to object storage once.
type ArchiveWorker struct {
	store   ObjectStore
	results ResultSource
	titles  TitleSource
	logger  *slog.Logger
}

func NewArchiveWorker(store ObjectStore, results ResultSource, titles TitleSource, logger *slog.Logger) *ArchiveWorker {
	return &ArchiveWorker{store: store, results: results, titles: titles, logger: logger}
}

// ArchiveKey files a round under the slug of the season title. The close
// time keeps rounds apart when a reset restarts numbering under the same
// title.
func ArchiveKey(title string, roundNumber int, closedAt time.Time) string {
	season := slug.Make(title)
	if season == "" {
		season = "season"
	}
	return fmt.Sprintf("%s/round-%03d-%s.json", season, roundNumber, closedAt.UTC().Format("20060102T150405Z"))
}

// RunOnce uploads pending results and returns how many were archived. A
// failed upload stops the batch so the next tick retries it first.
func (w *ArchiveWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.results.PendingArchive(ctx, archiveBatch)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	title, err := w.titles.Title(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, r := range pending {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return done, fmt.Errorf("encode round %d: %w", r.RoundNumber, err)
		}
		key := ArchiveKey(title, r.RoundNumber, r.ClosedAt)
		url, err := w.store.Put(ctx, key, data, "application/json")
		if err != nil {
			return done, fmt.Errorf("upload round %d: %w", r.RoundNumber, err)
		}
		if err := w.results.MarkArchived(ctx, r.RoundID); err != nil {
			return done, err
		}
		done++
		w.logger.Info("round archived", "round", r.RoundNumber, "url", url)
	}
	return done, nil
}

// PollArchive runs the worker every interval until ctx is done.
func PollArchive(ctx context.Context, w *ArchiveWorker, interval time.Duration) {
	w.logger.Info("archive polling started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("archive polling stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("archive run failed", "error", err)
			}
		}
	}
}
