package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/cardsync/internal/sse"
	"github.com/starford/cardsync/internal/testutil"
)

type fakeView struct {
	readyAfter int
	lookups    int
	selected   string
	zoomed     bool
}

func (v *fakeView) LookupNode(string) bool {
	v.lookups++
	return v.lookups > v.readyAfter
}
func (v *fakeView) SelectNode(id string) error { v.selected = id; return nil }
func (v *fakeView) ZoomToSelection() error     { v.zoomed = true; return nil }

type fakeOpener struct {
	view *fakeView
	err  error
}

func (o fakeOpener) Open(context.Context, string) (CanvasView, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.view, nil
}

var fast = Config{Attempts: 5, Interval: time.Millisecond}

func TestFocus_ReadyAfterPolling(t *testing.T) {
	v := &fakeView{readyAfter: 3}
	require.NoError(t, Focus(context.Background(), fakeOpener{view: v}, "a.canvas", "n1", fast))
	assert.Equal(t, 4, v.lookups)
	assert.Equal(t, "n1", v.selected)
	assert.True(t, v.zoomed)
}

func TestFocus_NotReady(t *testing.T) {
	v := &fakeView{readyAfter: 100}
	err := Focus(context.Background(), fakeOpener{view: v}, "a.canvas", "n1", fast)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 5, v.lookups)
	assert.False(t, v.zoomed)
}

func TestFocus_OpenError(t *testing.T) {
	boom := errors.New("boom")
	err := Focus(context.Background(), fakeOpener{err: boom}, "a.canvas", "n1", fast)
	assert.ErrorIs(t, err, boom)
}

func TestFocus_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Focus(ctx, fakeOpener{view: &fakeView{readyAfter: 100}}, "a.canvas", "n1", Config{Attempts: 3, Interval: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}

type capture struct {
	mu     sync.Mutex
	events []sse.Event
}

func (c *capture) Publish(e sse.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

type viewers map[string]int

func (v viewers) Viewers(canvasPath string) int { return v[canvasPath] }

func TestBroadcastOpener(t *testing.T) {
	root, store := testutil.TestVault(t)
	testutil.WriteFiles(t, root, map[string]string{
		"a.canvas": `{"nodes":[{"id":"n1","type":"text","text":"x"}]}`,
	})
	pub := &capture{}

	require.NoError(t, Focus(context.Background(), NewBroadcastOpener(pub, viewers{"a.canvas": 1}, store), "a.canvas", "n1", fast))
	require.Len(t, pub.events, 3)
	assert.Equal(t, sse.EventCanvasOpen, pub.events[0].Type)
	assert.Equal(t, sse.EventCanvasSelect, pub.events[1].Type)
	assert.Equal(t, sse.EventCanvasZoom, pub.events[2].Type)
	assert.Equal(t, map[string]string{"path": "a.canvas", "node_id": "n1"}, pub.events[2].Data)
	assert.Equal(t, "a.canvas", pub.events[1].Canvas)

	err := Focus(context.Background(), NewBroadcastOpener(pub, viewers{"b.canvas": 1}, store), "a.canvas", "n1", fast)
	assert.ErrorIs(t, err, ErrNotReady)

	err = Focus(context.Background(), NewBroadcastOpener(pub, nil, store), "a.canvas", "missing", fast)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestBroadcastOpener_WithBroker(t *testing.T) {
	root, store := testutil.TestVault(t)
	testutil.WriteFiles(t, root, map[string]string{
		"a.canvas": `{"nodes":[{"id":"n1","type":"text","text":"x"}]}`,
	})
	b := sse.NewBroker(time.Second)
	defer b.Close()
	host := b.Subscribe(sse.Subscription{Host: true})
	defer b.Unsubscribe(host)

	cfg := Config{Attempts: 20, Interval: 10 * time.Millisecond}
	require.NoError(t, Focus(context.Background(), NewBroadcastOpener(b, b, store), "a.canvas", "n1", cfg))
	assert.Equal(t, 1, b.Viewers("a.canvas"))
}
