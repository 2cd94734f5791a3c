package events

import (
	"encoding/json"
	"sync"
	"time"
)

type Kind string

const (
	KindSessionStarted   Kind = "session_started"
	KindSessionClosed    Kind = "session_closed"
	KindRecordingSaved   Kind = "recording_saved"
	KindVideoDownloaded  Kind = "video_downloaded"
	KindAnalysisComplete Kind = "analysis_complete"
	KindVideoLiked       Kind = "video_liked"
	KindIterationFailed  Kind = "iteration_failed"
)

// Event is one loop notification fanned out to websocket subscribers.
type Event struct {
	Kind      Kind            `json:"kind"`
	SessionID string          `json:"session_id"`
	TraceID   string          `json:"trace_id,omitempty"`
	Time      time.Time       `json:"time"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
	now    func() time.Time
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[chan Event]struct{}), buffer: buffer, now: time.Now}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish stamps e and delivers it to every subscriber with room.
// It reports how many subscribers received it.
func (h *Hub) Publish(e Event) int {
	if e.Time.IsZero() {
		e.Time = h.now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- e:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers is the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// NewEvent marshals data into an Event. Marshal failures drop the payload.
func NewEvent(kind Kind, sessionID, traceID string, data interface{}) Event {
	e := Event{Kind: kind, SessionID: sessionID, TraceID: traceID}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}
