// Package sse implements a Server-Sent Events broker that pushes canvas
// changes, notices, and view commands to connected clients.
//
// Clients are either followers, which receive every event, or canvas hosts,
// which receive global events plus events for the canvas they currently
// show. A canvas.open event moves every host to the opened canvas.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventCanvasUpdated     = "canvas.updated"
	EventCanvasRemoved     = "canvas.removed"
	EventCardSynced        = "card.synced"
	EventIndexRebuilt      = "index.rebuilt"
	EventReferencesChanged = "references.changed"
	EventNotice            = "notice"
	EventCanvasOpen        = "canvas.open"
	EventCanvasSelect      = "canvas.select"
	EventCanvasZoom        = "canvas.zoom"
)

// Event represents an SSE event to broadcast. A non-empty Canvas limits
// delivery to followers and to hosts showing that canvas.
type Event struct {
	Type   string `json:"type"`
	Canvas string `json:"-"`
	Data   any    `json:"data"`
}

// Publisher is the publishing side of a Broker.
type Publisher interface {
	Publish(event Event)
}

// Notice is the payload of a one-shot user notification.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Subscription describes a client. Host clients act as the visual canvas
// host; Canvas is the canvas a host shows when it connects.
type Subscription struct {
	Host   bool
	Canvas string
}

type client struct {
	host   bool
	canvas string
}

type subscribeReq struct {
	ch  chan []byte
	sub Subscription
}

type countReq struct {
	canvas string
	hosts  bool
	resp   chan int
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients with their current canvas, plus the references throttle timestamp).
// Public methods communicate with this loop through channels, so no mutexes
// are required.
type Broker struct {
	refsMin time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ Publisher = (*Broker)(nil)

// NewBroker creates a new SSE broker. refsThrottle bounds how often
// references.changed follows canvas events.
func NewBroker(refsThrottle time.Duration) *Broker {
	if refsThrottle <= 0 {
		refsThrottle = 2 * time.Second
	}

	b := &Broker{
		refsMin:       refsThrottle,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	var lastRefs time.Time

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Client buffer full; skip to avoid blocking broker loop.
		}
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		opening := event.Type == EventCanvasOpen && event.Canvas != ""
		for ch, c := range clients {
			switch {
			case opening && c.host:
				c.canvas = event.Canvas
			case event.Canvas != "" && c.host && c.canvas != event.Canvas:
				continue
			}
			send(ch, raw)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = &client{host: req.sub.Host, canvas: req.sub.Canvas}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if event.Type != EventCanvasUpdated && event.Type != EventCanvasRemoved {
				continue
			}
			now := time.Now()
			if now.Sub(lastRefs) >= b.refsMin {
				lastRefs = now
				broadcast(Event{Type: EventReferencesChanged, Data: map[string]string{}})
			}

		case req := <-b.countReqCh:
			n := 0
			for _, c := range clients {
				if !req.hosts || (c.host && c.canvas == req.canvas) {
					n++
				}
			}
			req.resp <- n
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe(sub Subscription) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, sub: sub}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return b.count(countReq{})
}

// Viewers returns the number of hosts currently showing canvasPath.
func (b *Broker) Viewers(canvasPath string) int {
	return b.count(countReq{canvas: canvasPath, hosts: true})
}

func (b *Broker) count(req countReq) int {
	if b.closed.Load() {
		return 0
	}

	req.resp = make(chan int, 1)
	select {
	case b.countReqCh <- req:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-req.resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the matching clients. canvas.updated and
// canvas.removed are followed by a throttled references.changed.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishCanvasEvent publishes a canvas change ("updated" or "removed")
// scoped to path.
func (b *Broker) PublishCanvasEvent(kind, path string) {
	typ := EventCanvasUpdated
	if kind == "removed" {
		typ = EventCanvasRemoved
	}
	b.Publish(Event{Type: typ, Canvas: path, Data: map[string]string{"path": path}})
}

// PublishNotice publishes a one-shot notification for the user.
func (b *Broker) PublishNotice(level, message string) {
	b.Publish(Event{Type: EventNotice, Data: Notice{Level: level, Message: message}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The query
// parameter host=1 registers the client as a canvas host, and canvas names
// the canvas it already shows.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	sub := Subscription{Host: q.Get("host") == "1", Canvas: q.Get("canvas")}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(sub)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
