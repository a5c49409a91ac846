// Package sse implements a Server-Sent Events broker that tells open
// browsers when the content directory changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Document change kinds accepted by PublishChange.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Event is a single SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type change struct {
	kind string
	name string
}

// Broker fans events out to connected clients.
//
// One goroutine owns the client set and the listing throttle; the exported
// methods talk to it over channels.
type Broker struct {
	listingMin time.Duration

	joinCh    chan chan []byte
	leaveCh   chan chan []byte
	eventCh   chan Event
	changeCh  chan change
	countCh   chan chan int
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closed    atomic.Bool
}

// NewBroker creates a broker that emits at most one listing.updated event
// per listingThrottle.
func NewBroker(listingThrottle time.Duration) *Broker {
	if listingThrottle <= 0 {
		listingThrottle = 2 * time.Second
	}
	b := &Broker{
		listingMin: listingThrottle,
		joinCh:     make(chan chan []byte),
		leaveCh:    make(chan chan []byte),
		eventCh:    make(chan Event, 256),
		changeCh:   make(chan change, 256),
		countCh:    make(chan chan int),
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
	go b.loop()
	return b
}

func encode(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload)), true
}

func (b *Broker) loop() {
	defer close(b.stoppedCh)

	clients := make(map[chan []byte]struct{})
	var lastListing time.Time

	send := func(ev Event) {
		msg, ok := encode(ev)
		if !ok {
			return
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// slow client, drop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.joinCh:
			clients[ch] = struct{}{}

		case ch := <-b.leaveCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.eventCh:
			send(ev)

		case c := <-b.changeCh:
			switch c.kind {
			case KindCreated, KindUpdated, KindDeleted:
				send(Event{Type: "document." + c.kind, Data: map[string]string{"name": c.name}})
			default:
				continue
			}
			if now := time.Now(); now.Sub(lastListing) >= b.listingMin {
				lastListing = now
				send(Event{Type: "listing.updated", Data: map[string]string{}})
			}

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stoppedCh
}

// Subscribe registers a client and returns its message channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
	case <-b.stoppedCh:
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
	case b.leaveCh <- ch:
	case <-b.stoppedCh:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
	case <-b.stoppedCh:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stoppedCh:
		return 0
	}
}

// Publish sends ev to all clients.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- ev:
	case <-b.stoppedCh:
	}
}

// PublishChange announces a document change followed, at most once per
// throttle window, by listing.updated.
func (b *Broker) PublishChange(kind, name string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- change{kind: kind, name: name}:
	case <-b.stoppedCh:
	}
}

// ServeHTTP streams events to one client (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
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
