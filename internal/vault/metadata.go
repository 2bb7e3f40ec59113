package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/index"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/parser"
	"github.com/starford/cardsync/internal/storage"
)

// Metadata serves note metadata from the SQLite cache, parsing the raw file
// when the cache has no entry. A nil cache always parses.
type Metadata struct {
	cache  index.NoteIndex
	store  storage.Provider
	logger *slog.Logger
}

// NewMetadata creates a metadata lookup.
func NewMetadata(cache index.NoteIndex, store storage.Provider, logger *slog.Logger) *Metadata {
	return &Metadata{cache: cache, store: store, logger: logger}
}

// Get returns the metadata for the note at p. It returns apperr.ErrNotFound
// when the note does not exist.
func (m *Metadata) Get(p string) (models.NoteMeta, error) {
	if m.cache != nil {
		row, err := m.cache.GetNote(p)
		if err == nil {
			return row.Meta(), nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			m.logger.Warn("vault: cache lookup failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}

	data, err := m.store.Read(p)
	if err != nil {
		return models.NoteMeta{}, fmt.Errorf("vault: read %q: %w", p, apperr.ErrNotFound)
	}
	if m.cache != nil {
		meta, err := index.IndexFile(m.cache, p, data, time.Time{})
		if err == nil {
			return meta, nil
		}
		m.logger.Warn("vault: cache fill failed", slog.String("path", p), slog.String("error", err.Error()))
	}

	res, err := parser.Parse(data)
	if err != nil {
		return models.NoteMeta{}, fmt.Errorf("vault: parse %q: %w", p, err)
	}
	return res.Meta(p), nil
}
