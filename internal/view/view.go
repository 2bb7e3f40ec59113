// Package view brings a canvas node into focus in whatever visual host is
// attached.
package view

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotReady is returned when a view never exposes the requested node
// within the attempt budget.
var ErrNotReady = errors.New("view: canvas view not ready")

// CanvasView is the capability a visual host exposes for one open canvas.
type CanvasView interface {
	// LookupNode reports whether the view currently shows a node with id.
	LookupNode(id string) bool
	SelectNode(id string) error
	ZoomToSelection() error
}

// Opener opens a canvas in the visual host.
type Opener interface {
	Open(ctx context.Context, canvasPath string) (CanvasView, error)
}

// Config bounds the readiness wait.
type Config struct {
	Attempts int
	Interval time.Duration
}

// DefaultConfig returns the stock polling budget.
func DefaultConfig() Config {
	return Config{Attempts: 10, Interval: 100 * time.Millisecond}
}

// Focus opens canvasPath, waits for nodeID to appear, then selects it and
// zooms to it. Readiness is polled up to cfg.Attempts times, cfg.Interval
// apart; when the node never appears the error wraps ErrNotReady.
func Focus(ctx context.Context, opener Opener, canvasPath, nodeID string, cfg Config) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	v, err := opener.Open(ctx, canvasPath)
	if err != nil {
		return fmt.Errorf("view: open %q: %w", canvasPath, err)
	}

	for attempt := 1; ; attempt++ {
		if v.LookupNode(nodeID) {
			break
		}
		if attempt >= cfg.Attempts {
			return fmt.Errorf("%w: node %q in %q after %d attempts", ErrNotReady, nodeID, canvasPath, cfg.Attempts)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}

	if err := v.SelectNode(nodeID); err != nil {
		return fmt.Errorf("view: select %q: %w", nodeID, err)
	}
	if err := v.ZoomToSelection(); err != nil {
		return fmt.Errorf("view: zoom: %w", err)
	}
	return nil
}
