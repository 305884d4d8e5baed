// Package sse streams check progress to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventFileChecked = "file.checked"
	EventRunProgress = "run.progress"
	EventRunFinished = "run.finished"
)

// DefaultHeartbeat is how often an idle stream receives a comment line.
const DefaultHeartbeat = 15 * time.Second

// Event is one message on the stream. RunID scopes it to the subscribers of
// that run; an empty RunID reaches everyone.
type Event struct {
	Type  string
	RunID string
	Data  any
}

// FileChecked is the payload of a file.checked event.
type FileChecked struct {
	RunID    string `json:"run_id"`
	Path     string `json:"path"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

// RunProgress is the payload of a run.progress event.
type RunProgress struct {
	RunID string `json:"run_id"`
	Files int    `json:"files"`
}

// RunFinished is the payload of a run.finished event.
type RunFinished struct {
	RunID    string `json:"run_id"`
	Files    int    `json:"files"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

type subscriber struct {
	ch    chan []byte
	runID string
}

func (s subscriber) wants(e Event) bool {
	return s.runID == "" || e.RunID == "" || s.runID == e.RunID
}

// hub is the state owned by the broker goroutine.
type hub struct {
	subs         map[chan []byte]subscriber
	seq          uint64
	progressMin  time.Duration
	lastProgress time.Time
	checked      map[string]int
}

func (h *hub) broadcast(e Event) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return
	}
	h.seq++
	msg := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, e.Type, payload))
	for ch, s := range h.subs {
		if !s.wants(e) {
			continue
		}
		select {
		case ch <- msg:
		default:
			// slow client, drop
		}
	}
}

// Broker fans events out to subscribers. Every state change runs as a
// closure on one goroutine, so the hub needs no locking.
type Broker struct {
	ops       chan func(*hub)
	heartbeat time.Duration

	done    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the idle keep-alive interval of ServeHTTP.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewBroker starts a broker. run.progress events go out at most once per
// progressThrottle.
func NewBroker(progressThrottle time.Duration, opts ...Option) *Broker {
	if progressThrottle <= 0 {
		progressThrottle = 2 * time.Second
	}
	b := &Broker{
		ops:       make(chan func(*hub), 256),
		heartbeat: DefaultHeartbeat,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.loop(&hub{
		subs:        make(map[chan []byte]subscriber),
		progressMin: progressThrottle,
		checked:     make(map[string]int),
	})
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case op := <-b.ops:
			op(h)
		case <-b.done:
			b.drain(h)
			for ch := range h.subs {
				close(ch)
			}
			return
		}
	}
}

func (b *Broker) drain(h *hub) {
	for {
		select {
		case op := <-b.ops:
			op(h)
		default:
			return
		}
	}
}

// do queues op on the broker goroutine. It reports false once the broker
// is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the broker and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
	<-b.stopped
}

// Subscribe registers a client for every event.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeRun("")
}

// SubscribeRun registers a client for the events of one run. An empty
// runID subscribes to all runs.
func (b *Broker) SubscribeRun(runID string) chan []byte {
	ch := make(chan []byte, 64)
	if !b.do(func(h *hub) { h.subs[ch] = subscriber{ch: ch, runID: runID} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.subs) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the interested clients.
func (b *Broker) Publish(e Event) {
	b.do(func(h *hub) {
		if e.Type == EventRunFinished {
			delete(h.checked, e.RunID)
		}
		h.broadcast(e)
	})
}

// PublishFileChecked publishes a file.checked event and a throttled
// run.progress event.
func (b *Broker) PublishFileChecked(fc FileChecked) {
	b.do(func(h *hub) {
		h.broadcast(Event{Type: EventFileChecked, RunID: fc.RunID, Data: fc})
		h.checked[fc.RunID]++

		now := time.Now()
		if now.Sub(h.lastProgress) < h.progressMin {
			return
		}
		h.lastProgress = now
		h.broadcast(Event{
			Type:  EventRunProgress,
			RunID: fc.RunID,
			Data:  RunProgress{RunID: fc.RunID, Files: h.checked[fc.RunID]},
		})
	})
}

// PublishRunFinished publishes a run.finished event.
func (b *Broker) PublishRunFinished(rf RunFinished) {
	b.Publish(Event{Type: EventRunFinished, RunID: rf.RunID, Data: rf})
}

// ServeHTTP streams events (GET /api/events). The optional run_id query
// parameter limits the stream to one run.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeRun(r.URL.Query().Get("run_id"))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
		case <-ping.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}
