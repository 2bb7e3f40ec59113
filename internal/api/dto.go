package api

import (
	"github.com/starford/cardsync/internal/companion"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/navigation"
	"github.com/starford/cardsync/internal/refindex"
)

// UpsertCardRequest is the request body for creating or syncing a card.
type UpsertCardRequest struct {
	Canvas string `json:"canvas" example:"boards/map.canvas" validate:"required"`
	Note   string `json:"note" example:"topics/hello.md" validate:"required"`
	Focus  bool   `json:"focus"`
}

// AdjustGroupsRequest is the request body for re-fitting group frames.
type AdjustGroupsRequest struct {
	Canvas string `json:"canvas" example:"boards/map.canvas" validate:"required"`
}

// ReferencesResponse lists the canvases a note is, or could be, drawn on.
type ReferencesResponse struct {
	Path       string                   `json:"path" example:"topics/hello.md" validate:"required"`
	References []models.ReferenceResult `json:"references" validate:"required"`
}

// CanvasReferencesResponse lists the notes drawn on a canvas.
type CanvasReferencesResponse struct {
	Canvas string   `json:"canvas" example:"boards/map.canvas" validate:"required"`
	Notes  []string `json:"notes" validate:"required"`
}

// AdjustGroupsResponse reports how many group frames moved.
type AdjustGroupsResponse struct {
	Canvas   string `json:"canvas" example:"boards/map.canvas" validate:"required"`
	Adjusted int    `json:"adjusted" example:"2" validate:"required"`
}

// BreadcrumbsResponse is the root-first parent chain of a note.
type BreadcrumbsResponse struct {
	Path  string   `json:"path" example:"topics/hello.md" validate:"required"`
	Trail []string `json:"trail" validate:"required"`
}

// NeighborsResponse holds prev/next candidates of a note.
type NeighborsResponse struct {
	Path string `json:"path" example:"topics/hello.md" validate:"required"`
	navigation.Neighbors
}

// UpsertCardResponse is the result of a create-or-sync (aliased from the domain layer).
type UpsertCardResponse = companion.UpsertResult

// RebuildResponse reports a finished index build (aliased from the domain layer).
type RebuildResponse = refindex.BuildStats
