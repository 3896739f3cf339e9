// Package web serves the consent API, the cookie policy page and the
// operational endpoints.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"marquee/internal/adapters/http/middleware"
	"marquee/internal/adapters/http/perf"
	consentStore "marquee/internal/adapters/storage/consent"
	"marquee/internal/config"
)

//go:embed content/cookie_policy.md templates/cookie_policy.html
var assets embed.FS

// Stores holds all storage dependencies.
type Stores struct {
	ConsentStore consentStore.Store
	// DB is pinged by /healthz. May be nil.
	DB Pinger
}

// App carries the handler dependencies. Build it with NewApp.
type App struct {
	cfg        config.Config
	stores     *Stores
	collector  *perf.Collector
	clock      clockwork.Clock
	csrfKey    []byte
	limiter    *middleware.RateLimiter
	policyPage []byte
	generateID func() string
}

// NewApp wires the handlers. collector may be nil; a nil clock uses the real clock.
// PRE: cfg passed config.Validate; s.ConsentStore is non-nil
// POST: Returns an App whose Handler is ready to serve; call Close on shutdown
func NewApp(cfg config.Config, s *Stores, collector *perf.Collector, clock clockwork.Clock) (*App, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	key, err := cfg.CSRFKey()
	if err != nil {
		return nil, err
	}
	page, err := renderPolicyPage(cfg.PolicyVersion)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:        cfg,
		stores:     s,
		collector:  collector,
		clock:      clock,
		csrfKey:    key,
		limiter:    middleware.NewRateLimiter(cfg.RateLimitPerSecond, time.Second),
		policyPage: page,
		generateID: generateID,
	}, nil
}

// Handler returns the full middleware chain around the route mux.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes(mux)

	// Innermost first: CaptureRoute -> RateLimit -> Visitor -> CSRF -> SecurityHeaders -> Timing
	return middleware.Chain(mux,
		middleware.CaptureRoute,
		middleware.RateLimit(a.limiter),
		middleware.Visitor(a.cfg.IsProduction()),
		middleware.CSRF(a.csrfKey, a.cfg.TrustedOrigins, a.cfg.IsProduction()),
		middleware.SecurityHeaders,
		middleware.Timing(a.collector, a.cfg.SlowRequestMs),
	)
}

// Close releases background resources.
func (a *App) Close() {
	a.limiter.Stop()
}

// renderPolicyPage converts the embedded markdown once at startup.
// Raw HTML in the markdown is escaped (WithUnsafe is not set).
func renderPolicyPage(policyVersion string) ([]byte, error) {
	src, err := assets.ReadFile("content/cookie_policy.md")
	if err != nil {
		return nil, fmt.Errorf("read cookie policy: %w", err)
	}
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("render cookie policy: %w", err)
	}

	tmpl, err := template.ParseFS(assets, "templates/cookie_policy.html")
	if err != nil {
		return nil, fmt.Errorf("parse cookie policy template: %w", err)
	}
	var page bytes.Buffer
	err = tmpl.Execute(&page, map[string]any{
		"Body":          template.HTML(body.String()),
		"PolicyVersion": policyVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("execute cookie policy template: %w", err)
	}
	return page.Bytes(), nil
}
