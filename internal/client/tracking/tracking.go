// Package tracking models the third-party signaling surface a page exposes to
// analytics tags: the tag-manager event queue, the consent dispatch call, global
// flags, an optional heatmap integration, and the cookie jar.
//
// Everything here is an injected capability. A nil capability is a missing
// integration and callers treat it as a silent no-op.
package tracking

import (
	"sync"

	"marquee/internal/domain/trackingcookie"
)

// ConsentState is the value tag managers use for a consent flag.
type ConsentState string

const (
	Granted ConsentState = "granted"
	Denied  ConsentState = "denied"
)

// StateOf converts a boolean to a consent state.
func StateOf(granted bool) ConsentState {
	if granted {
		return Granted
	}
	return Denied
}

// Signal is the set of flags carried by a consent dispatch.
type Signal struct {
	AnalyticsStorage  ConsentState `json:"analytics_storage"`
	AdStorage         ConsentState `json:"ad_storage"`
	AdUserData        ConsentState `json:"ad_user_data"`
	AdPersonalization ConsentState `json:"ad_personalization"`
}

// Event is one entry on the tag queue.
type Event map[string]any

// Sink is the tag-manager surface: an append-only queue plus a dispatch call.
type Sink interface {
	// Push appends an event to the queue.
	Push(e Event)
	// Consent dispatches a consent command ("default" or "update").
	Consent(command string, s Signal)
}

// Heatmap is a secondary analytics integration that can be told to stop.
type Heatmap interface {
	WithdrawConsent()
}

// CookieJar is the client cookie store.
type CookieJar interface {
	// Names lists the cookie names currently visible to the page.
	Names() []string
	// Expire applies one expiry directive.
	Expire(d trackingcookie.Directive)
}

// Globals holds page-wide flags and the analytics configuration object.
type Globals struct {
	mu         sync.RWMutex
	flags      map[string]bool
	propertyID string
}

// NewGlobals creates globals carrying the analytics property identifier (may be empty).
func NewGlobals(propertyID string) *Globals {
	return &Globals{flags: make(map[string]bool), propertyID: propertyID}
}

// PropertyID returns the configured analytics property, or "" when none is set.
func (g *Globals) PropertyID() string {
	if g == nil {
		return ""
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.propertyID
}

// SetFlag sets a named global flag.
func (g *Globals) SetFlag(name string, v bool) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flags[name] = v
}

// Flag reads a named global flag.
func (g *Globals) Flag(name string) bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.flags[name]
}

// DisableFlagName returns the conventional per-property analytics kill switch.
func DisableFlagName(propertyID string) string {
	return "ga-disable-" + propertyID
}
