package cards

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/canvas"
	"github.com/starford/cardsync/internal/checksum"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/storage"
)

// NoteSource looks up note metadata by path.
type NoteSource interface {
	Get(path string) (models.NoteMeta, error)
}

// Reconciler runs engine operations against canvas files. Each operation is
// a read-modify-write that writes only when the document changed.
type Reconciler struct {
	engine *Engine
	store  storage.Provider
	notes  NoteSource
	logger *slog.Logger
	guard  bool
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithFingerprintGuard enables or disables the check that a canvas did not
// change between read and write.
func WithFingerprintGuard(on bool) ReconcilerOption {
	return func(r *Reconciler) { r.guard = on }
}

// NewReconciler creates a reconciler. The fingerprint guard is on by default.
func NewReconciler(engine *Engine, store storage.Provider, notes NoteSource, logger *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{engine: engine, store: store, notes: notes, logger: logger, guard: true}
	for _, o := range opts {
		o(r)
	}
	return r
}

// UpsertCard creates or syncs the card for notePath in canvasPath. A canvas
// that does not exist yet is created.
func (r *Reconciler) UpsertCard(canvasPath, notePath string) (Result, error) {
	note, err := r.note(canvasPath, notePath)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = r.update(canvasPath, true, func(doc *canvas.Document) (bool, error) {
		var dirty bool
		var err error
		res, dirty, err = r.engine.Upsert(doc, note)
		return dirty, err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// SyncCard syncs an existing card for notePath. It reports OutcomeMissing
// and writes nothing when the canvas holds no card for the note.
func (r *Reconciler) SyncCard(canvasPath, notePath string) (Result, error) {
	note, err := r.note(canvasPath, notePath)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = r.update(canvasPath, false, func(doc *canvas.Document) (bool, error) {
		var dirty bool
		var err error
		res, dirty, err = r.engine.Sync(doc, note)
		return dirty, err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// AdjustGroups snaps every single-card group in canvasPath to its card and
// returns how many groups moved.
func (r *Reconciler) AdjustGroups(canvasPath string) (int, error) {
	if err := checkCanvasPath(canvasPath); err != nil {
		return 0, err
	}
	var changed int
	err := r.update(canvasPath, false, func(doc *canvas.Document) (bool, error) {
		changed = r.engine.AdjustGroups(doc)
		return changed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (r *Reconciler) note(canvasPath, notePath string) (models.NoteMeta, error) {
	if err := checkCanvasPath(canvasPath); err != nil {
		return models.NoteMeta{}, err
	}
	if !strings.HasSuffix(notePath, models.NoteExt) {
		return models.NoteMeta{}, fmt.Errorf("cards: %q is not a note: %w", notePath, apperr.ErrInvalidInput)
	}
	note, err := r.notes.Get(notePath)
	if err != nil {
		return models.NoteMeta{}, fmt.Errorf("cards: note %q: %w", notePath, err)
	}
	return note, nil
}

func checkCanvasPath(p string) error {
	if !strings.HasSuffix(p, models.CanvasExt) {
		return fmt.Errorf("cards: %q is not a canvas: %w", p, apperr.ErrInvalidInput)
	}
	return nil
}

// update reads canvasPath, applies fn, and writes the result when fn reports
// a change. With the guard on, the file is re-read before writing; if it no
// longer matches the fingerprint taken at load, fn runs once more on a fresh
// read, and a second mismatch fails with apperr.ErrConflict.
func (r *Reconciler) update(canvasPath string, create bool, fn func(*canvas.Document) (bool, error)) error {
	const attempts = 2
	for attempt := 1; ; attempt++ {
		data, err := r.read(canvasPath, create)
		if err != nil {
			return err
		}
		fingerprint := checksum.Sum(data)

		doc, err := canvas.Parse(data)
		if err != nil {
			return err
		}
		dirty, err := fn(doc)
		if err != nil {
			return err
		}
		if !dirty {
			return nil
		}
		out, err := doc.Serialize()
		if err != nil {
			return err
		}

		if r.guard {
			current, err := r.read(canvasPath, create)
			if err != nil {
				return err
			}
			if !checksum.Equal(fingerprint, current) {
				if attempt < attempts {
					r.logger.Warn("cards: canvas changed during update, retrying", slog.String("canvas", canvasPath))
					continue
				}
				return fmt.Errorf("cards: %q changed during update: %w", canvasPath, apperr.ErrConflict)
			}
		}

		if err := r.store.Write(canvasPath, out); err != nil {
			return fmt.Errorf("cards: write %q: %w", canvasPath, err)
		}
		r.logger.Debug("cards: canvas written", slog.String("canvas", canvasPath))
		return nil
	}
}

// read returns the canvas bytes. A missing canvas reads as empty when create
// is set and as apperr.ErrNotFound otherwise.
func (r *Reconciler) read(canvasPath string, create bool) ([]byte, error) {
	if !r.store.Exists(canvasPath) {
		if create {
			return nil, nil
		}
		return nil, fmt.Errorf("cards: canvas %q: %w", canvasPath, apperr.ErrNotFound)
	}
	data, err := r.store.Read(canvasPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && create {
			return nil, nil
		}
		return nil, fmt.Errorf("cards: read %q: %w", canvasPath, err)
	}
	return data, nil
}
