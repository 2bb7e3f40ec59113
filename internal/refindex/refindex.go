// Package refindex maintains the in-memory reverse index from canvas path to
// the set of note paths the canvas references.
//
// The index is a cache over canvas file contents. It is never persisted and
// any entry can be re-derived by reading the canvas again.
package refindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/cardsync/internal/canvas"
	"github.com/starford/cardsync/internal/links"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/storage"
)

// Defaults for batched builds.
const (
	DefaultBatchSize = 5
	DefaultBatchIdle = 20 * time.Millisecond
)

// Index is the reverse reference index. It is safe for concurrent use;
// readers always observe a complete set for a canvas.
type Index struct {
	store     storage.Provider
	resolver  links.Resolver
	logger    *slog.Logger
	batchSize int
	batchIdle time.Duration

	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// Option configures an Index.
type Option func(*Index)

// WithBatchSize sets how many canvases are indexed concurrently per batch.
func WithBatchSize(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithBatchIdle sets the pause between batches.
func WithBatchIdle(d time.Duration) Option {
	return func(ix *Index) {
		if d >= 0 {
			ix.batchIdle = d
		}
	}
}

// New returns an empty index. Call Rebuild to populate it.
func New(store storage.Provider, resolver links.Resolver, logger *slog.Logger, opts ...Option) *Index {
	ix := &Index{
		store:     store,
		resolver:  resolver,
		logger:    logger,
		batchSize: DefaultBatchSize,
		batchIdle: DefaultBatchIdle,
		sets:      make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Extract returns the note paths doc references. File nodes contribute their
// path; wiki-links in text nodes are resolved relative to canvasPath.
// Unresolved links are skipped.
func Extract(doc *canvas.Document, canvasPath string, resolver links.Resolver) map[string]struct{} {
	set := make(map[string]struct{})
	for _, n := range doc.Nodes {
		switch n.Type {
		case canvas.TypeFile:
			if n.File != "" {
				set[n.File] = struct{}{}
			}
		case canvas.TypeText:
			for _, target := range links.ExtractWikiLinks(n.Text) {
				if p, ok := resolver.Resolve(target, canvasPath); ok {
					set[p] = struct{}{}
				}
			}
		}
	}
	return set
}

// IndexCanvas re-derives the entry for one canvas. When the canvas cannot
// be read or parsed its entry is removed and the error is returned for
// reporting; the index itself stays consistent. A canvas deleted after it
// was read is dropped rather than stored.
func (ix *Index) IndexCanvas(canvasPath string) error {
	data, err := ix.store.Read(canvasPath)
	if err != nil {
		ix.Remove(canvasPath)
		return fmt.Errorf("refindex: read %q: %w", canvasPath, err)
	}
	doc, err := canvas.Parse(data)
	if err != nil {
		ix.Remove(canvasPath)
		return fmt.Errorf("refindex: %q: %w", canvasPath, err)
	}
	set := Extract(doc, canvasPath, ix.resolver)
	if !ix.store.Exists(canvasPath) {
		ix.Remove(canvasPath)
		return nil
	}
	ix.Set(canvasPath, set)
	return nil
}

// Set replaces the entry for canvasPath with set. The index takes ownership
// of set.
func (ix *Index) Set(canvasPath string, set map[string]struct{}) {
	ix.mu.Lock()
	ix.sets[canvasPath] = set
	ix.mu.Unlock()
}

// Remove deletes the entry for canvasPath.
func (ix *Index) Remove(canvasPath string) {
	ix.mu.Lock()
	delete(ix.sets, canvasPath)
	ix.mu.Unlock()
}

// Clear empties the index.
func (ix *Index) Clear() {
	ix.mu.Lock()
	ix.sets = make(map[string]map[string]struct{})
	ix.mu.Unlock()
}

// BuildStats summarises a Rebuild.
type BuildStats struct {
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Rebuild indexes every canvas in the vault in batches. Canvases within a
// batch are indexed concurrently; batches run one after another with an idle
// pause between them. A canvas that fails is logged and counted and never
// aborts the build. Entries for canvases no longer on disk are dropped.
func (ix *Index) Rebuild(ctx context.Context) (BuildStats, error) {
	start := time.Now()
	metas, err := ix.store.List("", models.CanvasExt)
	if err != nil {
		return BuildStats{}, fmt.Errorf("refindex: list canvases: %w", err)
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
	}

	var indexed, failed atomic.Int64
	for i := 0; i < len(metas); i += ix.batchSize {
		if i > 0 && ix.batchIdle > 0 {
			select {
			case <-ctx.Done():
				return BuildStats{}, ctx.Err()
			case <-time.After(ix.batchIdle):
			}
		}
		if err := ctx.Err(); err != nil {
			return BuildStats{}, err
		}

		batch := metas[i:min(i+ix.batchSize, len(metas))]
		var g errgroup.Group
		for _, m := range batch {
			g.Go(func() error {
				if err := ix.IndexCanvas(m.Path); err != nil {
					failed.Add(1)
					ix.logger.Warn("refindex: canvas index failed",
						slog.String("path", m.Path), slog.String("error", err.Error()))
					return nil
				}
				indexed.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	}

	ix.mu.Lock()
	for p := range ix.sets {
		if _, ok := onDisk[p]; !ok {
			delete(ix.sets, p)
		}
	}
	ix.mu.Unlock()

	stats := BuildStats{Indexed: int(indexed.Load()), Failed: int(failed.Load()), Duration: time.Since(start)}
	ix.logger.Info("refindex: build complete",
		slog.Int("indexed", stats.Indexed),
		slog.Int("failed", stats.Failed),
		slog.String("duration", stats.Duration.String()))
	return stats, nil
}

// References returns the sorted note paths referenced by canvasPath.
func (ix *Index) References(canvasPath string) []string {
	ix.mu.RLock()
	set := ix.sets[canvasPath]
	ix.mu.RUnlock()
	return sortedKeys(set)
}

// Contains reports whether canvasPath is known to reference notePath.
func (ix *Index) Contains(canvasPath, notePath string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.sets[canvasPath][notePath]
	return ok
}

// CanvasesReferencing returns the sorted canvas paths that reference notePath.
func (ix *Index) CanvasesReferencing(notePath string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []string
	for c, set := range ix.sets {
		if _, ok := set[notePath]; ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Canvases returns every indexed canvas path, sorted.
func (ix *Index) Canvases() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.sets))
	for c := range ix.sets {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed canvases.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.sets)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
