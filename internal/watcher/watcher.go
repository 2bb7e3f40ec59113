// Package watcher turns file system notifications under the vault into
// note and canvas events.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/cardsync/internal/models"
)

// Handler receives vault events. Paths are vault-relative with forward
// slashes. Methods are called from the watcher goroutine, one at a time.
type Handler interface {
	NoteChanged(ctx context.Context, path string)
	NoteRemoved(ctx context.Context, path string)
	CanvasChanged(ctx context.Context, path string)
	CanvasRemoved(ctx context.Context, path string)
	// Reconcile is called once a burst of renames has settled.
	Reconcile(ctx context.Context)
}

// DefaultReconcileDelay is the debounce applied after rename events.
const DefaultReconcileDelay = 200 * time.Millisecond

// Config tunes Watch.
type Config struct {
	ReconcileDelay time.Duration
}

// Watch starts an fsnotify watcher on the vault root and dispatches file
// change events to h until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list and their files reported as changed. fsnotify reports a rename on the
// old path only, so the old path is reported removed at once and a debounced
// Reconcile follows; the new path arrives as its own create event.
func Watch(ctx context.Context, vaultRoot string, logger *slog.Logger, h Handler, cfg Config) error {
	delay := cfg.ReconcileDelay
	if delay <= 0 {
		delay = DefaultReconcileDelay
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(delay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(delay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			logger.Debug("watcher: reconcile")
			h.Reconcile(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if hidden(filepath.Base(absPath)) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					dispatchDir(ctx, vaultRoot, absPath, h)
					continue
				}
			}

			kind := classify(absPath)
			if kind == kindOther {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				logger.Debug("watcher: changed", slog.String("path", rel), slog.String("op", ev.Op.String()))
				changed(ctx, h, kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				logger.Debug("watcher: removed", slog.String("path", rel))
				removed(ctx, h, kind, rel)

			case ev.Op&fsnotify.Rename != 0:
				logger.Debug("watcher: renamed away", slog.String("path", rel))
				removed(ctx, h, kind, rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

type fileKind int

const (
	kindOther fileKind = iota
	kindNote
	kindCanvas
)

func classify(p string) fileKind {
	switch {
	case strings.HasSuffix(p, models.NoteExt):
		return kindNote
	case strings.HasSuffix(p, models.CanvasExt):
		return kindCanvas
	}
	return kindOther
}

func changed(ctx context.Context, h Handler, kind fileKind, rel string) {
	if kind == kindNote {
		h.NoteChanged(ctx, rel)
	} else {
		h.CanvasChanged(ctx, rel)
	}
}

func removed(ctx context.Context, h Handler, kind fileKind, rel string) {
	if kind == kindNote {
		h.NoteRemoved(ctx, rel)
	} else {
		h.CanvasRemoved(ctx, rel)
	}
}

// dispatchDir reports every note and canvas already inside a new directory.
func dispatchDir(ctx context.Context, vaultRoot, dirPath string, h Handler) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dirPath && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		kind := classify(p)
		if kind == kindOther {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, p)
		if relErr != nil {
			return nil
		}
		changed(ctx, h, kind, filepath.ToSlash(rel))
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return w.Add(p)
		}
		return nil
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
