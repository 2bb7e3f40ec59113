// Package companion ties the reference index, the card reconciler and the
// navigator to the vault and exposes the operations the HTTP, MCP and CLI
// surfaces call.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/cards"
	"github.com/starford/cardsync/internal/index"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/navigation"
	"github.com/starford/cardsync/internal/refindex"
	"github.com/starford/cardsync/internal/sse"
	"github.com/starford/cardsync/internal/storage"
	"github.com/starford/cardsync/internal/vault"
	"github.com/starford/cardsync/internal/view"
)

// Events is the publishing side of the SSE broker.
type Events interface {
	sse.Publisher
	PublishCanvasEvent(kind, path string)
	PublishNotice(level, message string)
}

// Deps holds the collaborators a Service is built from.
type Deps struct {
	Store    storage.Provider
	DB       index.NoteIndex
	Resolver *vault.Resolver
	Notes    *vault.Metadata
	Refs     *refindex.Index
	Cards    *cards.Reconciler
	Nav      *navigation.Navigator
	Events   Events
	Opener   view.Opener
	View     view.Config
	Logger   *slog.Logger
}

// Service coordinates index maintenance and card operations.
type Service struct {
	store    storage.Provider
	db       index.NoteIndex
	resolver *vault.Resolver
	notes    *vault.Metadata
	refs     *refindex.Index
	cards    *cards.Reconciler
	nav      *navigation.Navigator
	events   Events
	opener   view.Opener
	viewCfg  view.Config
	logger   *slog.Logger
}

// New creates a service. A nil Events discards everything; a nil Opener
// makes focus requests fail with view.ErrNotReady.
func New(d Deps) *Service {
	ev := d.Events
	if ev == nil {
		ev = nopEvents{}
	}
	return &Service{
		store:    d.Store,
		db:       d.DB,
		resolver: d.Resolver,
		notes:    d.Notes,
		refs:     d.Refs,
		cards:    d.Cards,
		nav:      d.Nav,
		events:   ev,
		opener:   d.Opener,
		viewCfg:  d.View,
		logger:   d.Logger,
	}
}

// CardEvent is the payload of card.synced.
type CardEvent struct {
	Canvas  string        `json:"canvas"`
	Note    string        `json:"note"`
	NodeID  string        `json:"node_id"`
	Outcome cards.Outcome `json:"outcome"`
}

// UpsertResult reports a create-or-sync and, when requested, the focus step.
type UpsertResult struct {
	cards.Result
	Canvas     string `json:"canvas"`
	Note       string `json:"note"`
	Focused    bool   `json:"focused"`
	FocusError string `json:"focus_error,omitempty"`
}

// Rebuild reconciles the note cache with the vault, reloads the name index
// and rebuilds the reverse reference index.
func (s *Service) Rebuild(ctx context.Context) (refindex.BuildStats, error) {
	if err := index.Sync(s.db, s.store, s.logger); err != nil {
		return refindex.BuildStats{}, fmt.Errorf("companion: sync notes: %w", err)
	}
	if err := s.resolver.Reload(); err != nil {
		return refindex.BuildStats{}, fmt.Errorf("companion: reload names: %w", err)
	}
	stats, err := s.refs.Rebuild(ctx)
	if err != nil {
		return refindex.BuildStats{}, err
	}
	s.events.Publish(sse.Event{Type: sse.EventIndexRebuilt, Data: stats})
	return stats, nil
}

// ScanReferences lists the canvases that draw notePath (existing) followed by
// canvases named in the canvas field of the note or any of its ancestors that
// do not draw it yet (potential).
func (s *Service) ScanReferences(notePath string) ([]models.ReferenceResult, error) {
	if _, err := s.notes.Get(notePath); err != nil {
		return nil, err
	}

	existing := s.refs.CanvasesReferencing(notePath)
	out := make([]models.ReferenceResult, 0, len(existing))
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		seen[c] = struct{}{}
		out = append(out, models.ReferenceResult{File: c, Kind: models.ReferenceExisting})
	}

	ancestors, err := s.nav.Ancestors(notePath)
	if err != nil {
		return nil, err
	}
	for _, p := range append([]string{notePath}, ancestors...) {
		meta, err := s.notes.Get(p)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, target := range meta.Relations.Canvas {
			c, ok := s.resolveCanvas(target, p)
			if !ok {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, models.ReferenceResult{File: c, Kind: models.ReferencePotential})
		}
	}
	return out, nil
}

// resolveCanvas resolves a canvas-field target, trying the .canvas extension
// when the bare name does not land on a canvas.
func (s *Service) resolveCanvas(target, fromPath string) (string, bool) {
	if p, ok := s.resolver.Resolve(target, fromPath); ok && strings.HasSuffix(p, models.CanvasExt) {
		return p, true
	}
	if path.Ext(target) != "" {
		return "", false
	}
	p, ok := s.resolver.Resolve(target+models.CanvasExt, fromPath)
	if !ok || !strings.HasSuffix(p, models.CanvasExt) {
		return "", false
	}
	return p, true
}

// UpsertCard creates or syncs the card for notePath in canvasPath. With
// focus set, the canvas is opened and the card selected afterwards; a focus
// failure is reported in the result and as a notice, not as an error.
func (s *Service) UpsertCard(ctx context.Context, canvasPath, notePath string, focus bool) (UpsertResult, error) {
	res, err := s.cards.UpsertCard(canvasPath, notePath)
	if err != nil {
		s.notice("warning", fmt.Sprintf("Could not update card for %s in %s: %v", notePath, canvasPath, err))
		return UpsertResult{}, err
	}
	s.logger.Info("companion: card upserted",
		slog.String("canvas", canvasPath),
		slog.String("note", notePath),
		slog.String("outcome", string(res.Outcome)))

	if res.Outcome != cards.OutcomeUnchanged {
		if err := s.refs.IndexCanvas(canvasPath); err != nil {
			s.logger.Warn("companion: reindex canvas failed",
				slog.String("canvas", canvasPath), slog.String("error", err.Error()))
		}
		s.events.PublishCanvasEvent("updated", canvasPath)
	}
	s.events.Publish(sse.Event{Type: sse.EventCardSynced, Canvas: canvasPath, Data: CardEvent{
		Canvas: canvasPath, Note: notePath, NodeID: res.NodeID, Outcome: res.Outcome,
	}})

	out := UpsertResult{Result: res, Canvas: canvasPath, Note: notePath}
	if !focus || res.NodeID == "" {
		return out, nil
	}
	if err := s.focus(ctx, canvasPath, res.NodeID); err != nil {
		s.logger.Warn("companion: focus failed",
			slog.String("canvas", canvasPath), slog.String("error", err.Error()))
		s.notice("info", fmt.Sprintf("Card written to %s but the canvas could not be focused", canvasPath))
		out.FocusError = err.Error()
		return out, nil
	}
	out.Focused = true
	return out, nil
}

func (s *Service) focus(ctx context.Context, canvasPath, nodeID string) error {
	if s.opener == nil {
		return view.ErrNotReady
	}
	return view.Focus(ctx, s.opener, canvasPath, nodeID, s.viewCfg)
}

// AdjustGroups re-fits single-card groups in canvasPath and returns how many
// groups moved.
func (s *Service) AdjustGroups(canvasPath string) (int, error) {
	n, err := s.cards.AdjustGroups(canvasPath)
	if err != nil {
		s.notice("warning", fmt.Sprintf("Could not adjust groups in %s: %v", canvasPath, err))
		return 0, err
	}
	if n > 0 {
		s.events.PublishCanvasEvent("updated", canvasPath)
	}
	s.logger.Info("companion: groups adjusted",
		slog.String("canvas", canvasPath), slog.Int("adjusted", n))
	return n, nil
}

// Breadcrumbs returns the root-first parent chain of notePath.
func (s *Service) Breadcrumbs(notePath string) ([]string, error) {
	return s.nav.Breadcrumbs(notePath)
}

// Neighbors returns prev/next candidates of notePath.
func (s *Service) Neighbors(notePath string) (navigation.Neighbors, error) {
	return s.nav.Neighbors(notePath)
}

// CanvasReferences returns the sorted note paths drawn on canvasPath.
func (s *Service) CanvasReferences(canvasPath string) ([]string, error) {
	if !strings.HasSuffix(canvasPath, models.CanvasExt) {
		return nil, fmt.Errorf("companion: %q is not a canvas: %w", canvasPath, apperr.ErrInvalidInput)
	}
	if !s.store.Exists(canvasPath) {
		return nil, fmt.Errorf("companion: %q: %w", canvasPath, apperr.ErrNotFound)
	}
	refs := s.refs.References(canvasPath)
	if refs == nil {
		refs = []string{}
	}
	return refs, nil
}

func (s *Service) notice(level, msg string) {
	s.events.PublishNotice(level, msg)
}

type nopEvents struct{}

func (nopEvents) Publish(sse.Event)                 {}
func (nopEvents) PublishCanvasEvent(string, string) {}
func (nopEvents) PublishNotice(string, string)      {}
