package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes maps every endpoint onto mux.
func (a *App) registerRoutes(mux *http.ServeMux) {
	// Consent API
	mux.HandleFunc("GET /api/cookie-consent", a.handleGetConsent)
	mux.HandleFunc("POST /api/cookie-consent", a.handleSaveConsent)
	mux.HandleFunc("DELETE /api/cookie-consent", a.handleRevokeConsent)
	mux.HandleFunc("GET /api/cookie-consent/history", a.handleConsentHistory)

	// Pages
	mux.HandleFunc("GET /cookie-policy", a.handleCookiePolicy)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(a.cfg.StaticDir))))

	// Operations
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	if !a.cfg.IsProduction() {
		mux.HandleFunc("GET /debug/perf", a.handlePerf)
	}
}
