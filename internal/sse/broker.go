// Package sse streams library changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/uhskit/internal/models"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// fileData is the payload of file.* events. The catalog fields are only
// set for created and updated files, Error only for invalid ones.
type fileData struct {
	Path    string `json:"path"`
	Title   string `json:"title,omitempty"`
	Format  string `json:"format,omitempty"`
	Version string `json:"version,omitempty"`
	CRC     string `json:"crc,omitempty"`
	Nodes   int    `json:"nodes,omitempty"`
	Error   string `json:"error,omitempty"`
}

// catalogData is the payload of catalog.updated: how many files changed in
// each way since the previous catalog.updated.
type catalogData struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Invalid int `json:"invalid"`
}

func (c catalogData) empty() bool {
	return c == catalogData{}
}

func frame(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

// Broker fans library changes out to SSE clients.
//
// A single goroutine owns the client set and the catalog.updated state;
// public methods talk to it over channels. catalog.updated is sent at most
// once per throttle interval and summarizes every change since the last
// one, so a burst of changes always ends with an up-to-date summary.
type Broker struct {
	catalogMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan models.FileChange
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends catalog.updated at most once per
// catalogThrottle.
func NewBroker(catalogThrottle time.Duration) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogMin:    catalogThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan models.FileChange, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// loop is the state owned by the run goroutine.
type loop struct {
	clients     map[chan []byte]struct{}
	pending     catalogData
	lastCatalog time.Time
	flush       *time.Timer
	flushC      <-chan time.Time
}

func (l *loop) broadcast(e Event) {
	msg, err := frame(e)
	if err != nil {
		return
	}
	for ch := range l.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}
}

func (l *loop) change(c models.FileChange) bool {
	data := fileData{Path: c.Path}
	switch c.Kind {
	case models.ChangeCreated:
		l.pending.Created++
	case models.ChangeUpdated:
		l.pending.Updated++
	case models.ChangeDeleted:
		l.pending.Deleted++
	case models.ChangeInvalid:
		l.pending.Invalid++
		data.Error = c.Error
	default:
		return false
	}
	if f := c.File; f != nil && c.Kind != models.ChangeDeleted {
		data.Title = f.Title
		data.Format = f.Format
		data.Version = f.Version
		data.CRC = f.CRC
		data.Nodes = f.Nodes
	}
	l.broadcast(Event{Type: "file." + c.Kind, Data: data})
	return true
}

// catalog sends the pending summary now if the throttle allows, otherwise
// arms the flush timer for when it will.
func (l *loop) catalog(every time.Duration) {
	if l.pending.empty() || l.flushC != nil {
		return
	}
	wait := every - time.Since(l.lastCatalog)
	if wait <= 0 {
		l.sendCatalog()
		return
	}
	l.flush = time.NewTimer(wait)
	l.flushC = l.flush.C
}

func (l *loop) sendCatalog() {
	l.flushC = nil
	if l.pending.empty() {
		return
	}
	l.lastCatalog = time.Now()
	l.broadcast(Event{Type: "catalog.updated", Data: l.pending})
	l.pending = catalogData{}
}

func (b *Broker) run() {
	defer close(b.stopped)

	l := &loop{clients: make(map[chan []byte]struct{})}

	for {
		select {
		case <-b.stopCh:
			if l.flush != nil {
				l.flush.Stop()
			}
			for ch := range l.clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			l.clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := l.clients[ch]; ok {
				delete(l.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			l.broadcast(event)

		case c := <-b.changeCh:
			if l.change(c) {
				l.catalog(b.catalogMin)
			}

		case <-l.flushC:
			l.sendCatalog()

		case resp := <-b.countReqCh:
			resp <- len(l.clients)
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
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishFileChange broadcasts file.<kind> for c and folds it into the next
// catalog.updated. Unknown kinds are ignored.
func (b *Broker) PublishFileChange(c models.FileChange) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- c:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
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
