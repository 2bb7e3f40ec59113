package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/starford/cardsync/internal/companion"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/navigation"
	"github.com/starford/cardsync/internal/refindex"
)

// Companion is the application service the handlers call.
type Companion interface {
	Rebuild(ctx context.Context) (refindex.BuildStats, error)
	ScanReferences(notePath string) ([]models.ReferenceResult, error)
	UpsertCard(ctx context.Context, canvasPath, notePath string, focus bool) (companion.UpsertResult, error)
	AdjustGroups(canvasPath string) (int, error)
	Breadcrumbs(notePath string) ([]string, error)
	Neighbors(notePath string) (navigation.Neighbors, error)
	CanvasReferences(canvasPath string) ([]string, error)
}

var _ Companion = (*companion.Service)(nil)

// Handler holds API route handlers.
type Handler struct {
	svc Companion
}

// NewHandler creates a new Handler.
func NewHandler(svc Companion) *Handler {
	return &Handler{svc: svc}
}

// pathParam returns the required "path" query parameter, writing a 400 when
// it is absent.
func pathParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return "", false
	}
	return p, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// References handles GET /api/references.
//
//	@Summary		List canvases that draw a note, then canvases its ancestors point at
//	@Tags			references
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	ReferencesResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references [get]
func (h *Handler) References(w http.ResponseWriter, r *http.Request) {
	p, ok := pathParam(w, r)
	if !ok {
		return
	}
	refs, err := h.svc.ScanReferences(p)
	if err != nil {
		writeError(w, "scan references", err)
		return
	}
	writeJSON(w, http.StatusOK, ReferencesResponse{Path: p, References: refs})
}

// UpsertCard handles POST /api/cards.
//
//	@Summary		Create or sync the card for a note in a canvas
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpsertCardRequest	true	"Target canvas and note"
//	@Success		200		{object}	UpsertCardResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [post]
func (h *Handler) UpsertCard(w http.ResponseWriter, r *http.Request) {
	var req UpsertCardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Canvas == "" || req.Note == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("canvas and note are required"))
		return
	}
	res, err := h.svc.UpsertCard(r.Context(), req.Canvas, req.Note, req.Focus)
	if err != nil {
		writeError(w, "upsert card", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdjustGroups handles POST /api/canvases/adjust.
//
//	@Summary		Re-fit single-card group frames in a canvas
//	@Tags			canvases
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AdjustGroupsRequest	true	"Target canvas"
//	@Success		200		{object}	AdjustGroupsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/adjust [post]
func (h *Handler) AdjustGroups(w http.ResponseWriter, r *http.Request) {
	var req AdjustGroupsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Canvas == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("canvas is required"))
		return
	}
	n, err := h.svc.AdjustGroups(req.Canvas)
	if err != nil {
		writeError(w, "adjust groups", err)
		return
	}
	writeJSON(w, http.StatusOK, AdjustGroupsResponse{Canvas: req.Canvas, Adjusted: n})
}

// CanvasReferences handles GET /api/canvases/references.
//
//	@Summary		List the notes a canvas draws
//	@Tags			canvases
//	@Produce		json
//	@Param			path	query		string	true	"Canvas path"
//	@Success		200		{object}	CanvasReferencesResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/canvases/references [get]
func (h *Handler) CanvasReferences(w http.ResponseWriter, r *http.Request) {
	p, ok := pathParam(w, r)
	if !ok {
		return
	}
	notes, err := h.svc.CanvasReferences(p)
	if err != nil {
		writeError(w, "canvas references", err)
		return
	}
	writeJSON(w, http.StatusOK, CanvasReferencesResponse{Canvas: p, Notes: notes})
}

// Breadcrumbs handles GET /api/breadcrumbs.
//
//	@Summary		Get the parent chain of a note, root first
//	@Tags			navigation
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	BreadcrumbsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/breadcrumbs [get]
func (h *Handler) Breadcrumbs(w http.ResponseWriter, r *http.Request) {
	p, ok := pathParam(w, r)
	if !ok {
		return
	}
	trail, err := h.svc.Breadcrumbs(p)
	if err != nil {
		writeError(w, "breadcrumbs", err)
		return
	}
	writeJSON(w, http.StatusOK, BreadcrumbsResponse{Path: p, Trail: trail})
}

// Neighbors handles GET /api/neighbors.
//
//	@Summary		Get prev/next candidates of a note
//	@Tags			navigation
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	NeighborsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/neighbors [get]
func (h *Handler) Neighbors(w http.ResponseWriter, r *http.Request) {
	p, ok := pathParam(w, r)
	if !ok {
		return
	}
	nb, err := h.svc.Neighbors(p)
	if err != nil {
		writeError(w, "neighbors", err)
		return
	}
	writeJSON(w, http.StatusOK, NeighborsResponse{Path: p, Neighbors: nb})
}

// Rebuild handles POST /api/index/rebuild.
//
//	@Summary		Rebuild the note cache and the canvas reference index
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	RebuildResponse
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Rebuild(r.Context())
	if err != nil {
		writeError(w, "rebuild", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
