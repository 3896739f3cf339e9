package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	web "marquee/internal/adapters/http"
	"marquee/internal/adapters/storage"
	consentStore "marquee/internal/adapters/storage/consent"
	"marquee/internal/config"
	domain "marquee/internal/domain/consent"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.MigrateDB(db))
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		Env:                "development",
		StaticDir:          t.TempDir(),
		CSRFKeyHex:         strings.Repeat("cd", 32),
		RateLimitPerSecond: 1000,
		PolicyVersion:      "2026-01",
		SiteHost:           "localhost",
	}
	app, err := web.NewApp(cfg, &web.Stores{ConsentStore: consentStore.NewSQLiteStore(db)}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// run executes consentctl with a shared state dir and decodes --json output.
func run(t *testing.T, srv *httptest.Server, stateDir string, args ...string) decisionOutput {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--url", srv.URL + "/api/cookie-consent", "--state-dir", stateDir, "--json"}, args...))
	require.NoError(t, cmd.Execute())

	var got decisionOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got), out.String())
	return got
}

func TestConsentctl_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	got := run(t, srv, dir, "show")
	assert.False(t, got.Known)
	assert.True(t, got.NeedsChoice)
	assert.Equal(t, domain.DefaultDeny(), got.Decision)

	got = run(t, srv, dir, "set", "--analytics")
	assert.Equal(t, domain.Decision{Necessary: true, Analytics: true}, got.Decision)
	assert.False(t, got.NeedsChoice)

	// A fresh process hydrates from the server under the persisted visitor id.
	got = run(t, srv, dir, "show")
	assert.True(t, got.Known)
	assert.Equal(t, domain.Decision{Necessary: true, Analytics: true}, got.Decision)

	got = run(t, srv, dir, "grant", "youtubeVideos")
	assert.Equal(t, domain.Decision{Necessary: true, YouTubeVideos: true}, got.Decision,
		"granting one category merges against default-deny")

	got = run(t, srv, dir, "revoke")
	assert.False(t, got.Known)
	assert.True(t, got.NeedsChoice)

	got = run(t, srv, dir, "show")
	assert.False(t, got.Known)
}

func TestConsentctl_SeparateStateDirsAreSeparateVisitors(t *testing.T) {
	srv := newTestServer(t)
	a, b := t.TempDir(), t.TempDir()

	run(t, srv, a, "accept-all")
	got := run(t, srv, b, "show")
	assert.False(t, got.Known)

	got = run(t, srv, a, "show")
	assert.Equal(t, domain.AcceptAll(), got.Decision)
}

func TestConsentctl_UnknownCategory(t *testing.T) {
	srv := newTestServer(t)
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--url", srv.URL + "/api/cookie-consent", "--state-dir", t.TempDir(), "grant", "ads"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestConsentctl_TextOutput(t *testing.T) {
	srv := newTestServer(t)
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--url", srv.URL + "/api/cookie-consent", "--state-dir", t.TempDir(), "--verbose", "--property", "G-TEST", "reject-all"})
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Analytics:      denied")
	assert.Contains(t, text, "banner: hidden")
	assert.Contains(t, text, "tracking: consent update analytics_storage=denied")
}
