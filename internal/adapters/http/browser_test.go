//go:build browser

package web_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"

	web "marquee/internal/adapters/http"
	"marquee/internal/adapters/storage"
	consentStore "marquee/internal/adapters/storage/consent"
	"marquee/internal/config"
)

// browserApp holds the running server and Playwright handles.
type browserApp struct {
	BaseURL string
	Browser playwright.Browser
}

func newBrowserApp(t *testing.T) *browserApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	cfg := config.Config{
		Env:                "development",
		StaticDir:          t.TempDir(),
		CSRFKeyHex:         strings.Repeat("ef", 32),
		RateLimitPerSecond: 1000,
		PolicyVersion:      "2026-01",
		SiteHost:           "127.0.0.1",
	}
	app, err := web.NewApp(cfg, &web.Stores{ConsentStore: consentStore.NewSQLiteStore(db), DB: db}, nil, nil)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	srv := httptest.NewServer(app.Handler())

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		app.Close()
		db.Close()
	})
	return &browserApp{BaseURL: srv.URL, Browser: browser}
}

func (a *browserApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// fetchText runs fetch in the page and returns the response body.
func fetchText(t *testing.T, page playwright.Page, method, body string) string {
	t.Helper()
	result, err := page.Evaluate(`async ([method, body]) => {
		const opts = {method, headers: {'Content-Type': 'application/json'}};
		if (body) { opts.body = body; }
		const resp = await fetch('/api/cookie-consent', opts);
		return await resp.text();
	}`, []any{method, body})
	if err != nil {
		t.Fatalf("fetch %s failed: %v", method, err)
	}
	s, _ := result.(string)
	return strings.TrimSpace(s)
}

// TestBrowser_ConsentRoundTrip verifies the visitor cookie carries a saved
// decision across requests and that revoking expires analytics cookies.
func TestBrowser_ConsentRoundTrip(t *testing.T) {
	app := newBrowserApp(t)
	page := app.newPage(t)

	if _, err := page.Goto(app.BaseURL + "/cookie-policy"); err != nil {
		t.Fatalf("failed to navigate to cookie policy: %v", err)
	}
	heading, err := page.Locator("h1").TextContent()
	if err != nil || heading != "Cookie policy" {
		t.Fatalf("policy heading = %q, %v", heading, err)
	}

	if got := fetchText(t, page, "GET", ""); got != `{"cookieConsent":null}` {
		t.Fatalf("first visit GET = %s", got)
	}

	saved := fetchText(t, page, "POST", `{"analytics":true,"marketing":false,"youtubeVideos":false}`)
	if !strings.Contains(saved, `"success":true`) {
		t.Fatalf("POST = %s", saved)
	}
	if got := fetchText(t, page, "GET", ""); !strings.Contains(got, `"analytics":true`) {
		t.Fatalf("returning GET = %s", got)
	}

	if _, err := page.Evaluate(`() => { document.cookie = "_ga=GA1.1.123; path=/"; }`); err != nil {
		t.Fatalf("failed to set analytics cookie: %v", err)
	}
	if got := fetchText(t, page, "DELETE", ""); got != `{"success":true}` {
		t.Fatalf("DELETE = %s", got)
	}
	cookies, err := page.Evaluate(`() => document.cookie`)
	if err != nil {
		t.Fatalf("failed to read cookies: %v", err)
	}
	if s, _ := cookies.(string); strings.Contains(s, "_ga=") {
		t.Errorf("_ga should be expired by the server, document.cookie = %q", s)
	}
	if got := fetchText(t, page, "GET", ""); got != `{"cookieConsent":null}` {
		t.Errorf("after revoke GET = %s", got)
	}
}
