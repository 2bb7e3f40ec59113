package view

import (
	"context"
	"sync"

	"github.com/starford/cardsync/internal/canvas"
	"github.com/starford/cardsync/internal/sse"
	"github.com/starford/cardsync/internal/storage"
)

// ViewerCounter reports how many hosts show a canvas.
type ViewerCounter interface {
	Viewers(canvasPath string) int
}

// BroadcastOpener drives connected SSE host clients as the visual host.
// Opening a canvas publishes canvas.open; selection and zoom publish
// canvas.select and canvas.zoom scoped to the canvas. A node counts as shown
// once a host shows the canvas and the canvas file holds the node.
type BroadcastOpener struct {
	pub     sse.Publisher
	viewers ViewerCounter
	store   storage.Provider
}

var _ Opener = (*BroadcastOpener)(nil)

// NewBroadcastOpener creates an opener. A nil viewer counter treats the
// host as always attached.
func NewBroadcastOpener(pub sse.Publisher, viewers ViewerCounter, store storage.Provider) *BroadcastOpener {
	return &BroadcastOpener{pub: pub, viewers: viewers, store: store}
}

// Open announces canvasPath to clients.
func (o *BroadcastOpener) Open(_ context.Context, canvasPath string) (CanvasView, error) {
	o.pub.Publish(sse.Event{Type: sse.EventCanvasOpen, Canvas: canvasPath, Data: map[string]string{"path": canvasPath}})
	return &broadcastView{opener: o, path: canvasPath}, nil
}

type broadcastView struct {
	opener *BroadcastOpener
	path   string

	mu       sync.Mutex
	selected string
}

func (v *broadcastView) LookupNode(id string) bool {
	if v.opener.viewers != nil && v.opener.viewers.Viewers(v.path) == 0 {
		return false
	}
	data, err := v.opener.store.Read(v.path)
	if err != nil {
		return false
	}
	doc, err := canvas.Parse(data)
	if err != nil {
		return false
	}
	return doc.NodeByID(id) != nil
}

func (v *broadcastView) SelectNode(id string) error {
	v.mu.Lock()
	v.selected = id
	v.mu.Unlock()
	v.opener.pub.Publish(sse.Event{Type: sse.EventCanvasSelect, Canvas: v.path, Data: map[string]string{"path": v.path, "node_id": id}})
	return nil
}

func (v *broadcastView) ZoomToSelection() error {
	v.mu.Lock()
	id := v.selected
	v.mu.Unlock()
	v.opener.pub.Publish(sse.Event{Type: sse.EventCanvasZoom, Canvas: v.path, Data: map[string]string{"path": v.path, "node_id": id}})
	return nil
}
