// Package trackingcookie knows which cookies belong to analytics tags and how to
// expire them in every scope a tag may have written them to.
package trackingcookie

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// AnalyticsNames are exact analytics cookie names.
var AnalyticsNames = []string{"_ga", "_gid", "_gat", "_gcl_au"}

// AnalyticsPrefixes match per-property analytics cookies such as _ga_ABC123.
var AnalyticsPrefixes = []string{"_ga_", "_gat_"}

// IsAnalytics reports whether a cookie name belongs to the analytics catalogue.
func IsAnalytics(name string) bool {
	for _, n := range AnalyticsNames {
		if name == n {
			return true
		}
	}
	for _, p := range AnalyticsPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// FilterAnalytics returns the analytics cookie names among names, preserving order.
func FilterAnalytics(names []string) []string {
	var out []string
	for _, n := range names {
		if IsAnalytics(n) {
			out = append(out, n)
		}
	}
	return out
}

// Directive is one expiry instruction for a cookie. An empty Domain means host-only.
type Directive struct {
	Name   string
	Path   string
	Domain string
}

// String renders the directive as a document.cookie style assignment.
func (d Directive) String() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString("=; expires=Thu, 01 Jan 1970 00:00:00 GMT; path=")
	b.WriteString(d.Path)
	if d.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(d.Domain)
	}
	return b.String()
}

// DeletionDirectives returns the candidate expiry directives for name on host: the
// bare path, the exact host, and the root domain with a leading dot. A cookie left
// in any one of these scopes stays active, so all of them are emitted.
// POST: Returns 1 directive for IP or single-label hosts, 3 otherwise
func DeletionDirectives(name, host string) []Directive {
	host = stripPort(strings.ToLower(strings.TrimSpace(host)))
	out := []Directive{{Name: name, Path: "/"}}
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return out
	}
	out = append(out,
		Directive{Name: name, Path: "/", Domain: host},
		Directive{Name: name, Path: "/", Domain: "." + RootDomain(host)},
	)
	return out
}

// RootDomain returns the registrable domain of host: one label above its public
// suffix ("www.shop.example.co.uk" -> "example.co.uk"). Hosts the suffix list
// cannot resolve fall back to their last two labels.
func RootDomain(host string) string {
	host = strings.Trim(host, ".")
	if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return root
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
