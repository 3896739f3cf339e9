package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"marquee/internal/adapters/http/perf"
)

// handleCookiePolicy serves the rendered policy page (GET /cookie-policy).
func (a *App) handleCookiePolicy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(a.policyPage)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// handleHealthz reports liveness and, when a Pinger is configured, database reachability.
func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if a.stores.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.stores.DB.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePerf returns the timing snapshot (GET /debug/perf?minutes=N&top=N).
// Not registered in production.
func (a *App) handlePerf(w http.ResponseWriter, r *http.Request) {
	if a.collector == nil {
		writeJSON(w, http.StatusOK, perf.Snapshot{})
		return
	}
	minutes := queryInt(r, "minutes", 15)
	top := queryInt(r, "top", 10)
	since := a.clock.Now().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, a.collector.Snapshot(since, top))
}

func queryInt(r *http.Request, name string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && n > 0 {
		return n
	}
	return def
}
