package events

import (
	"sync"

	"github.com/google/uuid"
)

// Collector is an Emitter that records every event in memory. Test helper.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty collector.
func NewCollector() *Collector { return &Collector{} }

// Emit implements Emitter.
func (c *Collector) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a snapshot of everything emitted so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// ForRun filters the snapshot down to one run id's events, in order.
func (c *Collector) ForRun(runID uuid.UUID) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.RunID == runID {
			out = append(out, ev)
		}
	}
	return out
}
