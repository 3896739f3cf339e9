package consent

import (
	"marquee/internal/client/tracking"
	domain "marquee/internal/domain/consent"
	"marquee/internal/domain/trackingcookie"
)

// Tag queue event names.
const (
	EventConsentUpdated = "consent_updated"
	EventPageView       = "page_view"
)

// Integrations are the third-party surfaces a decision is applied to. Any field
// may be nil; a missing integration is skipped silently.
type Integrations struct {
	Sink    tracking.Sink
	Heatmap tracking.Heatmap
	Jar     tracking.CookieJar
	Globals *tracking.Globals
	// Host is the page host used to build cookie deletion directives.
	Host string
}

// Propagator fans a decision out to the tracking surface. It holds no consent
// state of its own; the Store passes in everything it needs.
type Propagator struct {
	integ Integrations
}

// NewPropagator creates a propagator over the given integrations.
func NewPropagator(integ Integrations) *Propagator {
	return &Propagator{integ: integ}
}

// SignalFor derives the consent flags for d. All ad flags mirror marketing.
func SignalFor(d domain.Decision) tracking.Signal {
	return tracking.Signal{
		AnalyticsStorage:  tracking.StateOf(d.Analytics),
		AdStorage:         tracking.StateOf(d.Marketing),
		AdUserData:        tracking.StateOf(d.Marketing),
		AdPersonalization: tracking.StateOf(d.Marketing),
	}
}

// Apply issues the consent update and runs category-specific disables.
// POST: sink saw one "update" dispatch and one consent_updated marker
func (p *Propagator) Apply(d domain.Decision) {
	if p.integ.Sink != nil {
		p.integ.Sink.Consent("update", SignalFor(d))
		p.integ.Sink.Push(tracking.Event{"event": EventConsentUpdated})
	}

	if id := p.integ.Globals.PropertyID(); id != "" {
		p.integ.Globals.SetFlag(tracking.DisableFlagName(id), !d.Analytics)
	}

	if !d.Analytics {
		p.ClearAnalyticsCookies()
		if p.integ.Heatmap != nil {
			p.integ.Heatmap.WithdrawConsent()
		}
	}
}

// InitialPageview fires the one-time page view when analytics is granted and it
// has not gone out yet. With analytics denied it deletes analytics cookies instead,
// covering tags that fired before consent was known. Returns the new sent flag.
func (p *Propagator) InitialPageview(d domain.Decision, sent bool) bool {
	if !d.Analytics {
		p.ClearAnalyticsCookies()
		return sent
	}
	if sent {
		return true
	}
	if p.integ.Sink != nil {
		p.integ.Sink.Push(tracking.Event{"event": EventPageView})
	}
	return true
}

// ClearAnalyticsCookies expires every analytics cookie in all candidate scopes.
// Returns the number of cookie names targeted.
func (p *Propagator) ClearAnalyticsCookies() int {
	if p.integ.Jar == nil {
		return 0
	}
	names := trackingcookie.FilterAnalytics(p.integ.Jar.Names())
	for _, name := range names {
		for _, dir := range trackingcookie.DeletionDirectives(name, p.integ.Host) {
			p.integ.Jar.Expire(dir)
		}
	}
	return len(names)
}
