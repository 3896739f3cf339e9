package consent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "marquee/internal/domain/consent"
)

func newRemoteServer(t *testing.T, h http.HandlerFunc) *HTTPRemote {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPRemote(srv.URL+"/api/cookie-consent", srv.Client(), "visitor-1")
}

func TestHTTPRemote_FetchSendsNoCacheHeaders(t *testing.T) {
	remote := newRemoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("Cache-Control"), "no-cache")
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		if c, err := r.Cookie(VisitorCookieName); assert.NoError(t, err) {
			assert.Equal(t, "visitor-1", c.Value)
		}
		w.Write([]byte(`{"cookieConsent":{"analytics":true,"marketing":false,"youtubeVideos":false}}`))
	})

	d, err := remote.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.Decision{Necessary: true, Analytics: true}, *d)
}

func TestHTTPRemote_FetchNullIsFirstVisit(t *testing.T) {
	remote := newRemoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cookieConsent":null}`))
	})

	d, err := remote.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestHTTPRemote_NonSuccessStatusIsUnavailable(t *testing.T) {
	remote := newRemoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := remote.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestHTTPRemote_NetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRemote(url, nil, "").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestHTTPRemote_SavePostsFullDecision(t *testing.T) {
	var got map[string]bool
	remote := newRemoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	})

	require.NoError(t, remote.Save(context.Background(), domain.Decision{Marketing: true}))
	assert.Equal(t, map[string]bool{
		"necessary":     true,
		"analytics":     false,
		"marketing":     true,
		"youtubeVideos": false,
	}, got)
}

func TestHTTPRemote_DeleteRejected(t *testing.T) {
	remote := newRemoteServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{"success":false}`))
	})

	assert.ErrorIs(t, remote.Delete(context.Background()), ErrRemoteRejected)
}

func TestFileSlot_RoundTrip(t *testing.T) {
	slot, err := NewFileSlot(t.TempDir())
	require.NoError(t, err)

	_, ok, err := slot.Get(domain.StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, slot.Set(domain.StorageKey, []byte(`{"analytics":true}`)))
	v, ok, err := slot.Get(domain.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"analytics":true}`, string(v))

	require.NoError(t, slot.Remove(domain.StorageKey))
	require.NoError(t, slot.Remove(domain.StorageKey))
	_, ok, _ = slot.Get(domain.StorageKey)
	assert.False(t, ok)

	assert.Error(t, slot.Set("../escape", []byte("x")))
}
