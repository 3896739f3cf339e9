package tracking

import (
	"sync"
)

// ConsentCall is one recorded consent dispatch.
type ConsentCall struct {
	Command string
	Signal  Signal
}

// DataLayer is an in-process tag queue. It records every push and dispatch so a
// tag loader (or a test) can replay them.
type DataLayer struct {
	mu       sync.Mutex
	events   []Event
	consents []ConsentCall
	onPush   []func(Event)
}

// EnsureDataLayer returns existing when a queue is already installed and creates a
// new one otherwise. It never replaces a queue that is already present.
func EnsureDataLayer(existing *DataLayer) *DataLayer {
	if existing != nil {
		return existing
	}
	return &DataLayer{}
}

// Push implements Sink.
func (d *DataLayer) Push(e Event) {
	d.mu.Lock()
	d.events = append(d.events, e)
	hooks := append([]func(Event){}, d.onPush...)
	d.mu.Unlock()
	for _, h := range hooks {
		h(e)
	}
}

// Consent implements Sink. The dispatch is also queued, the way gtag does it.
func (d *DataLayer) Consent(command string, s Signal) {
	d.mu.Lock()
	d.consents = append(d.consents, ConsentCall{Command: command, Signal: s})
	d.mu.Unlock()
	d.Push(Event{"event": "consent", "command": command, "signal": s})
}

// OnPush registers a hook that sees every pushed event.
func (d *DataLayer) OnPush(h func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPush = append(d.onPush, h)
}

// Events returns a copy of the queue.
func (d *DataLayer) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// ConsentCalls returns a copy of the recorded dispatches.
func (d *DataLayer) ConsentCalls() []ConsentCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ConsentCall(nil), d.consents...)
}

// LastConsent returns the most recent dispatch, if any.
func (d *DataLayer) LastConsent() (ConsentCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.consents) == 0 {
		return ConsentCall{}, false
	}
	return d.consents[len(d.consents)-1], true
}

// Count returns how many queued events have the given "event" name.
func (d *DataLayer) Count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e["event"] == name {
			n++
		}
	}
	return n
}
