package app

import (
	"sync"

	"github.com/raysh454/a11yscan/internal/model"
)

type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
)

// RunEvent is pushed to subscribers of a run as it progresses.
type RunEvent struct {
	RunID string    `json:"run_id"`
	Type  EventType `json:"type"`

	Status model.ScanStatus `json:"status,omitempty"`
	Error  *model.RunError  `json:"error,omitempty"`

	// For progress and result events.
	PagesScanned    int      `json:"pages_scanned,omitempty"`
	PagesDiscovered int      `json:"pages_discovered,omitempty"`
	Score           *float64 `json:"compliance_score,omitempty"`
}

// Final reports whether no further events follow e.
func (e RunEvent) Final() bool { return e.Type == EventResult }

const subscriberBuffer = 64

// broker fans run events out to subscribers. Sends never block the run: a
// slow subscriber loses progress events but always receives the result.
type broker struct {
	mu   sync.Mutex
	subs map[string]map[chan RunEvent]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[chan RunEvent]struct{})}
}

func (b *broker) subscribe(runID string) (chan RunEvent, func()) {
	ch := make(chan RunEvent, subscriberBuffer)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan RunEvent]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[runID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(b.subs, runID)
				}
			}
		})
	}
}

func (b *broker) publish(ev RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[ev.RunID] {
		select {
		case ch <- ev:
			continue
		default:
		}
		if !ev.Final() {
			continue
		}
		// Make room for the result by dropping the oldest pending event.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// finish closes every subscriber of runID after its result was published.
func (b *broker) finish(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		close(ch)
	}
	delete(b.subs, runID)
}
