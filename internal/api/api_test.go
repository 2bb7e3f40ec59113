package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/cards"
	"github.com/starford/cardsync/internal/companion"
	"github.com/starford/cardsync/internal/measure"
	"github.com/starford/cardsync/internal/models"
	"github.com/starford/cardsync/internal/navigation"
	"github.com/starford/cardsync/internal/refindex"
	"github.com/starford/cardsync/internal/testutil"
	"github.com/starford/cardsync/internal/vault"
)

// testEnv sets up a temp vault, SQLite DB, companion service, and router.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string, files map[string]string) (http.Handler, string) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, files, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, files map[string]string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()
	logger := testutil.Logger()
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFiles(t, vaultDir, files)
	db := testutil.TestDB(t)

	resolver, err := vault.NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	notes := vault.NewMetadata(db, store, logger)
	engine := cards.NewEngine(measure.MeasurerFunc(func(string) (measure.Size, error) {
		return measure.Size{Width: 250, Height: 100}, nil
	}), cards.DefaultOptions())

	svc := companion.New(companion.Deps{
		Store:    store,
		DB:       db,
		Resolver: resolver,
		Notes:    notes,
		Refs:     refindex.New(store, resolver, logger, refindex.WithBatchIdle(0)),
		Cards:    cards.NewReconciler(engine, store, notes, logger),
		Nav:      navigation.New(notes, resolver, db),
		Logger:   logger,
	})
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return NewRouter(svc, authEnabled, authToken, sseHandler), vaultDir
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const emptyCanvas = `{"nodes":[],"edges":[]}`

func TestUpsertCardAndReferences(t *testing.T) {
	router, vaultDir := testEnv(t, "", map[string]string{
		"topics/hello.md":   "---\ndescription: Says hello\n---\n# Hello\n",
		"boards/map.canvas": emptyCanvas,
	})

	w := do(t, router, http.MethodPost, "/cards", UpsertCardRequest{Canvas: "boards/map.canvas", Note: "topics/hello.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body = %s", w.Code, w.Body.String())
	}
	var res UpsertCardResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Outcome != cards.OutcomeCreated || res.NodeID == "" {
		t.Errorf("upsert = %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(vaultDir, "boards", "map.canvas"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Says hello") {
		t.Errorf("canvas missing description: %s", data)
	}

	w = do(t, router, http.MethodGet, "/references?path=topics/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("references status = %d", w.Code)
	}
	var refs ReferencesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &refs)
	want := []models.ReferenceResult{{File: "boards/map.canvas", Kind: models.ReferenceExisting}}
	if fmt.Sprint(refs.References) != fmt.Sprint(want) {
		t.Errorf("references = %v, want %v", refs.References, want)
	}

	w = do(t, router, http.MethodGet, "/canvases/references?path=boards/map.canvas", nil)
	var cr CanvasReferencesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cr)
	if len(cr.Notes) != 1 || cr.Notes[0] != "topics/hello.md" {
		t.Errorf("canvas notes = %v", cr.Notes)
	}

	// Second upsert is a no-op.
	w = do(t, router, http.MethodPost, "/cards", UpsertCardRequest{Canvas: "boards/map.canvas", Note: "topics/hello.md"})
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Outcome != cards.OutcomeUnchanged {
		t.Errorf("second outcome = %q, want unchanged", res.Outcome)
	}
}

func TestUpsertCard_Validation(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{"a.md": "# A"})

	w := do(t, router, http.MethodPost, "/cards", map[string]string{"canvas": "x.canvas"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing note = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/cards", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}

	w = do(t, router, http.MethodPost, "/cards", UpsertCardRequest{Canvas: "x.txt", Note: "a.md"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-canvas target = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/cards", UpsertCardRequest{Canvas: "x.canvas", Note: "ghost.md"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestUpsertCard_MalformedCanvas(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{
		"a.md":          "# A",
		"broken.canvas": "{not json",
	})

	w := do(t, router, http.MethodPost, "/cards", UpsertCardRequest{Canvas: "broken.canvas", Note: "a.md"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed canvas = %d, want 422", w.Code)
	}
}

func TestAdjustGroups(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{
		"board.canvas": `{"nodes":[` +
			`{"id":"g","type":"group","label":"note","x":0,"y":0,"width":100,"height":100},` +
			`{"id":"c","type":"text","text":"# [[note]]","x":10,"y":10,"width":250,"height":60}` +
			`],"edges":[]}`,
	})

	w := do(t, router, http.MethodPost, "/canvases/adjust", AdjustGroupsRequest{Canvas: "board.canvas"})
	if w.Code != http.StatusOK {
		t.Fatalf("adjust = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AdjustGroupsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Adjusted != 1 {
		t.Errorf("adjusted = %d, want 1", resp.Adjusted)
	}

	w = do(t, router, http.MethodPost, "/canvases/adjust", AdjustGroupsRequest{Canvas: "missing.canvas"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing canvas = %d, want 404", w.Code)
	}
}

func TestBreadcrumbsAndNeighbors(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{
		"root.md":  "# Root",
		"one.md":   "---\nup: \"[[root]]\"\nnext: \"[[two]]\"\n---\n",
		"two.md":   "---\nup: \"[[root]]\"\n---\n",
		"three.md": "---\nprev: \"[[two]]\"\n---\n",
	})

	w := do(t, router, http.MethodGet, "/breadcrumbs?path=one.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("breadcrumbs = %d", w.Code)
	}
	var bc BreadcrumbsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &bc)
	if fmt.Sprint(bc.Trail) != "[root.md one.md]" {
		t.Errorf("trail = %v", bc.Trail)
	}

	w = do(t, router, http.MethodGet, "/neighbors?path=two.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("neighbors = %d", w.Code)
	}
	var nb NeighborsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &nb)
	if fmt.Sprint(nb.Prev) != "[one.md]" || fmt.Sprint(nb.Next) != "[three.md]" {
		t.Errorf("neighbors = %+v", nb)
	}

	w = do(t, router, http.MethodGet, "/breadcrumbs", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodGet, "/neighbors?path=ghost.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestRebuild(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{"a.canvas": emptyCanvas})

	w := do(t, router, http.MethodPost, "/index/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild = %d", w.Code)
	}
	var stats RebuildResponse
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Indexed != 1 {
		t.Errorf("indexed = %d, want 1", stats.Indexed)
	}
}

// conflictCompanion fails every card write with a concurrency conflict.
type conflictCompanion struct{ Companion }

func (conflictCompanion) UpsertCard(context.Context, string, string, bool) (companion.UpsertResult, error) {
	return companion.UpsertResult{}, fmt.Errorf("cards: board.canvas: %w", apperr.ErrConflict)
}

func TestUpsertCard_Conflict(t *testing.T) {
	router := NewRouter(conflictCompanion{}, false, "", nil)
	w := do(t, router, http.MethodPost, "/cards", UpsertCardRequest{Canvas: "board.canvas", Note: "a.md"})
	if w.Code != http.StatusConflict {
		t.Errorf("conflict = %d, want 409", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123", map[string]string{"a.md": "# A"})

	req := httptest.NewRequest(http.MethodGet, "/breadcrumbs?path=a.md", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123", nil)

	w := do(t, router, http.MethodGet, "/references?path=a.md", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodPost, "/index/rebuild", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "", nil)

	w := do(t, router, http.MethodPost, "/index/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvFull(t, true, "secret", nil, blockingSSE)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvFull(t, true, "tok", nil, blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	router, _ := testEnvFull(t, true, "tok", nil, blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?host=1&access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/events?access_token=wrong", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE with wrong query token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGet(t *testing.T) {
	router, _ := testEnvFull(t, true, "tok", nil, nil)

	w := do(t, router, http.MethodPost, "/index/rebuild?access_token=tok", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}
