package web

import (
	"errors"
	"log/slog"
	"net/http"

	"marquee/internal/adapters/http/middleware"
	"marquee/internal/adapters/metrics"
	"marquee/internal/application/orchestrators"
	"marquee/internal/application/projections"
	domain "marquee/internal/domain/consent"
	"marquee/internal/domain/trackingcookie"
)

// consentSource tags audit events written through the browser API.
const consentSource = "web"

// consentPayload is the POST body. Every optional category must be present;
// necessary may be omitted and is forced on regardless.
type consentPayload struct {
	Necessary     *bool `json:"necessary"`
	Analytics     *bool `json:"analytics"`
	Marketing     *bool `json:"marketing"`
	YouTubeVideos *bool `json:"youtubeVideos"`
}

var errIncompleteDecision = errors.New("analytics, marketing and youtubeVideos are required")

func (p consentPayload) decision() (domain.Decision, error) {
	if p.Analytics == nil || p.Marketing == nil || p.YouTubeVideos == nil {
		return domain.Decision{}, errIncompleteDecision
	}
	return domain.Decision{
		Necessary:     true,
		Analytics:     *p.Analytics,
		Marketing:     *p.Marketing,
		YouTubeVideos: *p.YouTubeVideos,
	}, nil
}

type getConsentResponse struct {
	CookieConsent *domain.Decision `json:"cookieConsent"`
}

type saveConsentResponse struct {
	Success       bool             `json:"success"`
	CookieConsent *domain.Decision `json:"cookieConsent,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func (a *App) consentDeps() orchestrators.ConsentDeps {
	return orchestrators.ConsentDeps{
		ConsentStore:   a.stores.ConsentStore,
		Clock:          a.clock,
		GenerateID:     a.generateID,
		PolicyVersion:  a.cfg.PolicyVersion,
		FingerprintKey: a.csrfKey,
	}
}

// handleGetConsent returns the visitor's stored decision (GET /api/cookie-consent)
// PRE: Visitor middleware ran
// POST: {"cookieConsent": Decision} or {"cookieConsent": null} when the visitor must be asked
func (a *App) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	visitorID, _ := middleware.VisitorFromContext(r.Context())

	res, err := projections.QueryGetConsent(r.Context(), projections.GetConsentQuery{
		VisitorID:     visitorID,
		PolicyVersion: a.cfg.PolicyVersion,
	}, projections.GetConsentDeps{ConsentStore: a.stores.ConsentStore})
	if err != nil {
		internalError(w, err)
		return
	}

	metrics.ConsentReadsTotal.WithLabelValues(res.Outcome).Inc()
	writeJSON(w, http.StatusOK, getConsentResponse{CookieConsent: res.Decision})
}

// handleSaveConsent stores a full decision (POST /api/cookie-consent)
// PRE: Body is a JSON decision naming every optional category
// POST: {"success": true, "cookieConsent": Decision}; 400 with success=false on a bad body
func (a *App) handleSaveConsent(w http.ResponseWriter, r *http.Request) {
	visitorID, _ := middleware.VisitorFromContext(r.Context())

	var p consentPayload
	if err := strictDecode(w, r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, saveConsentResponse{Error: "invalid JSON body"})
		return
	}
	d, err := p.decision()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, saveConsentResponse{Error: err.Error()})
		return
	}

	rec, err := orchestrators.ExecuteSaveConsent(r.Context(), orchestrators.SaveConsentInput{
		VisitorID: visitorID,
		Decision:  d,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Source:    consentSource,
	}, a.consentDeps())
	if err != nil {
		internalError(w, err)
		return
	}

	metrics.RecordDecision(rec.Decision)
	writeJSON(w, http.StatusOK, saveConsentResponse{Success: true, CookieConsent: &rec.Decision})
}

// handleRevokeConsent deletes the visitor's decision (DELETE /api/cookie-consent)
// PRE: Visitor middleware ran
// POST: {"success": true}; analytics cookies sent with the request are expired via Set-Cookie
func (a *App) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	visitorID, _ := middleware.VisitorFromContext(r.Context())

	err := orchestrators.ExecuteRevokeConsent(r.Context(), orchestrators.RevokeConsentInput{
		VisitorID: visitorID,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Source:    consentSource,
	}, a.consentDeps())
	if err != nil {
		internalError(w, err)
		return
	}

	expired := a.expireAnalyticsCookies(w, r)
	metrics.ConsentRevocationsTotal.Inc()
	slog.Debug("consent_cookies_expired", "visitor_id", visitorID, "count", expired)
	writeJSON(w, http.StatusOK, saveConsentResponse{Success: true})
}

// expireAnalyticsCookies adds a Set-Cookie expiry for every analytics cookie the
// browser sent, in each scope it might have been written under.
func (a *App) expireAnalyticsCookies(w http.ResponseWriter, r *http.Request) int {
	host := a.cfg.SiteHost
	if host == "" {
		host = r.Host
	}
	seen := map[string]bool{}
	n := 0
	for _, c := range r.Cookies() {
		if seen[c.Name] || !trackingcookie.IsAnalytics(c.Name) {
			continue
		}
		seen[c.Name] = true
		for _, d := range trackingcookie.DeletionDirectives(c.Name, host) {
			w.Header().Add("Set-Cookie", d.String())
			n++
		}
	}
	return n
}

type consentHistoryResponse struct {
	Events []domain.Event `json:"events"`
}

// handleConsentHistory returns the visitor's audit trail (GET /api/cookie-consent/history)
// PRE: Visitor middleware ran
// POST: {"events": [...]} newest first, without fingerprints
func (a *App) handleConsentHistory(w http.ResponseWriter, r *http.Request) {
	visitorID, _ := middleware.VisitorFromContext(r.Context())

	events, err := projections.QueryGetConsentHistory(r.Context(), projections.GetConsentHistoryQuery{
		VisitorID: visitorID,
	}, projections.GetConsentDeps{ConsentStore: a.stores.ConsentStore})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, consentHistoryResponse{Events: events})
}
