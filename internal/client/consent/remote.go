package consent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "marquee/internal/domain/consent"
)

// VisitorCookieName carries the anonymous visitor identity to the consent API.
const VisitorCookieName = "sm_visitor"

var (
	// ErrRemoteUnavailable covers network failures and non-success statuses.
	ErrRemoteUnavailable = errors.New("consent remote unavailable")
	// ErrRemoteRejected is returned when the server answers success=false.
	ErrRemoteRejected = errors.New("consent remote rejected the request")
)

// Remote is the server-side persistence of consent.
type Remote interface {
	// Fetch returns the stored decision, or nil for a visitor with no record.
	Fetch(ctx context.Context) (*domain.Decision, error)
	// Save stores a full decision.
	Save(ctx context.Context, d domain.Decision) error
	// Delete revokes the stored decision.
	Delete(ctx context.Context) error
}

// HTTPRemote talks to the consent endpoint over HTTP, bypassing caches.
type HTTPRemote struct {
	client    *http.Client
	endpoint  string
	visitorID string
}

// NewHTTPRemote creates a remote for endpoint (e.g. "https://example.com/api/cookie-consent").
// A nil client gets a default one with a 10s timeout. visitorID may be empty, in which
// case the client's cookie jar (if any) carries whatever identity the server issued.
func NewHTTPRemote(endpoint string, client *http.Client, visitorID string) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRemote{client: client, endpoint: endpoint, visitorID: visitorID}
}

type fetchResponse struct {
	CookieConsent *domain.Decision `json:"cookieConsent"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Fetch implements Remote.
// POST: Returns (nil, nil) when the server has no decision for this visitor
func (r *HTTPRemote) Fetch(ctx context.Context) (*domain.Decision, error) {
	var out fetchResponse
	if err := r.do(ctx, http.MethodGet, nil, &out); err != nil {
		return nil, err
	}
	return out.CookieConsent, nil
}

// Save implements Remote.
func (r *HTTPRemote) Save(ctx context.Context, d domain.Decision) error {
	var out successResponse
	if err := r.do(ctx, http.MethodPost, d.Normalize(), &out); err != nil {
		return err
	}
	if !out.Success {
		return ErrRemoteRejected
	}
	return nil
}

// Delete implements Remote.
func (r *HTTPRemote) Delete(ctx context.Context) error {
	var out successResponse
	if err := r.do(ctx, http.MethodDelete, nil, &out); err != nil {
		return err
	}
	if !out.Success {
		return ErrRemoteRejected
	}
	return nil
}

func (r *HTTPRemote) do(ctx context.Context, method string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode consent body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.endpoint, rd)
	if err != nil {
		return fmt.Errorf("build consent request: %w", err)
	}
	// JSON content type also keeps the request on the CSRF-exempt API path.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	if r.visitorID != "" {
		req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: r.visitorID})
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRemoteUnavailable, method, r.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s: status %d", ErrRemoteUnavailable, method, r.endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}
