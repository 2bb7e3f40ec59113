package index

import (
	"log/slog"
	"time"

	"github.com/starford/cardsync/internal/checksum"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/parser"
	"github.com/starford/cardsync/internal/storage"
)

// Sync walks the vault's notes and brings the cache up to date:
//   - new/changed notes are parsed and upserted
//   - notes removed from disk are deleted from the cache
func Sync(db NoteIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("", models.NoteExt)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts it into the cache. A zero modTime is
// recorded as now.
func IndexFile(db NoteIndex, path string, data []byte, modTime time.Time) (models.NoteMeta, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return models.NoteMeta{}, err
	}
	if modTime.IsZero() {
		modTime = time.Now()
	}

	row := NoteRow{
		Path:        path,
		Title:       res.Title,
		Checksum:    checksum.Sum(data),
		Description: res.Description,
		Relations:   res.Relations,
		UpdatedAt:   modTime,
	}
	if err := db.UpsertNote(row, res.Body, res.Links); err != nil {
		return models.NoteMeta{}, err
	}
	return row.Meta(), nil
}
