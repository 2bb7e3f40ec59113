package companion

import (
	"context"
	"log/slog"

	"github.com/starford/cardsync/internal/cards"
	"github.com/starford/cardsync/internal/index"
	"github.com/starford/cardsync/internal/refindex"
	"github.com/starford/cardsync/internal/sse"
)

// NoteChanged refreshes the cached metadata of a note and re-syncs every card
// drawn for it. Events for a known note whose content matches the cache are
// ignored. A note the name index did not know yet may make previously
// dangling canvas links resolve, so it triggers a reference rebuild.
func (s *Service) NoteChanged(ctx context.Context, notePath string) {
	meta, err := s.store.Stat(notePath)
	if err != nil {
		s.logger.Warn("companion: stat note failed",
			slog.String("path", notePath), slog.String("error", err.Error()))
		return
	}
	known := s.resolver.Exists(notePath)
	if cached, err := s.db.GetChecksum(notePath); err == nil && known && cached == meta.Checksum {
		s.logger.Debug("companion: note unchanged", slog.String("path", notePath))
		return
	}

	data, err := s.store.Read(notePath)
	if err != nil {
		s.logger.Warn("companion: read note failed",
			slog.String("path", notePath), slog.String("error", err.Error()))
		return
	}
	if _, err := index.IndexFile(s.db, notePath, data, meta.UpdatedAt); err != nil {
		s.logger.Warn("companion: index note failed",
			slog.String("path", notePath), slog.String("error", err.Error()))
		return
	}

	s.resolver.Add(notePath)
	if !known {
		if _, err := s.refs.Rebuild(ctx); err != nil {
			s.logger.Warn("companion: reference rebuild failed", slog.String("error", err.Error()))
		}
	}
	s.sweep(notePath)
}

// sweep syncs the card for notePath on every canvas that references it.
func (s *Service) sweep(notePath string) {
	for _, c := range s.refs.CanvasesReferencing(notePath) {
		res, err := s.cards.SyncCard(c, notePath)
		if err != nil {
			s.logger.Warn("companion: card sync failed",
				slog.String("canvas", c),
				slog.String("note", notePath),
				slog.String("error", err.Error()))
			continue
		}
		if res.Outcome != cards.OutcomeSynced {
			continue
		}
		s.logger.Info("companion: card synced",
			slog.String("canvas", c), slog.String("note", notePath))
		s.events.Publish(sse.Event{Type: sse.EventCardSynced, Canvas: c, Data: CardEvent{
			Canvas: c, Note: notePath, NodeID: res.NodeID, Outcome: res.Outcome,
		}})
	}
}

// NoteRemoved drops a note from the cache and the name index.
func (s *Service) NoteRemoved(_ context.Context, notePath string) {
	if err := s.db.DeleteNote(notePath); err != nil {
		s.logger.Warn("companion: delete note failed",
			slog.String("path", notePath), slog.String("error", err.Error()))
	}
	s.resolver.Remove(notePath)
}

// CanvasChanged re-derives the reference set of a canvas.
func (s *Service) CanvasChanged(_ context.Context, canvasPath string) {
	s.resolver.Add(canvasPath)
	if err := s.refs.Apply(refindex.Delta{Kind: refindex.CanvasChanged, Path: canvasPath}); err != nil {
		s.logger.Warn("companion: canvas index failed",
			slog.String("path", canvasPath), slog.String("error", err.Error()))
	}
	s.events.PublishCanvasEvent("updated", canvasPath)
}

// CanvasRemoved forgets a canvas.
func (s *Service) CanvasRemoved(_ context.Context, canvasPath string) {
	s.resolver.Remove(canvasPath)
	_ = s.refs.Apply(refindex.Delta{Kind: refindex.CanvasRemoved, Path: canvasPath})
	s.events.PublishCanvasEvent("removed", canvasPath)
}

// Reconcile catches up after renames by rebuilding everything from disk.
func (s *Service) Reconcile(ctx context.Context) {
	if _, err := s.Rebuild(ctx); err != nil {
		s.logger.Warn("companion: reconcile failed", slog.String("error", err.Error()))
	}
}
