package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes one committed change. Opportunity is nil for deletions.
type Event struct {
	Type        EventType           `json:"type"`
	ID          string              `json:"id"`
	Opportunity *models.Opportunity `json:"opportunity,omitempty"`
	At          string              `json:"at"`
}

const DefaultBuffer = 32

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	buffer int

	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan Event
	dropped atomic.Uint64

	now func() time.Time
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer, subs: map[uint64]chan Event{}, now: time.Now}
}

// Subscribe registers a subscriber. The returned cancel func closes the
// channel and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(typ EventType, id string, o *models.Opportunity) {
	if h == nil {
		return
	}
	ev := Event{Type: typ, ID: id, At: models.FormatTimestamp(h.now())}
	if o != nil {
		c := o.Clone()
		ev.Opportunity = &c
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber was behind.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
