package tracking

import (
	"sort"
	"strings"
	"sync"

	"marquee/internal/domain/trackingcookie"
)

// Cookie is a cookie as scoped by the browser. Domain "" means host-only.
type Cookie struct {
	Name   string
	Value  string
	Path   string
	Domain string
}

type cookieKey struct {
	name, path, domain string
}

// MemoryJar is a CookieJar that keeps cookies per (name, path, domain) scope, so
// deleting one scope leaves the others alive just like a browser.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[cookieKey]Cookie
}

// NewMemoryJar creates an empty jar.
func NewMemoryJar() *MemoryJar {
	return &MemoryJar{cookies: make(map[cookieKey]Cookie)}
}

// Set stores a cookie in its scope.
func (j *MemoryJar) Set(c Cookie) {
	if c.Path == "" {
		c.Path = "/"
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[cookieKey{c.Name, c.Path, strings.ToLower(c.Domain)}] = c
}

// Names implements CookieJar. Each name is listed once, sorted.
func (j *MemoryJar) Names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	seen := make(map[string]bool, len(j.cookies))
	var names []string
	for k := range j.cookies {
		if !seen[k.name] {
			seen[k.name] = true
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// Expire implements CookieJar. Only the exact scope named by the directive goes.
func (j *MemoryJar) Expire(d trackingcookie.Directive) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.cookies, cookieKey{d.Name, d.Path, strings.ToLower(d.Domain)})
}

// Has reports whether any scope still holds the named cookie.
func (j *MemoryJar) Has(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for k := range j.cookies {
		if k.name == name {
			return true
		}
	}
	return false
}

// Len returns the number of stored cookie scopes.
func (j *MemoryJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}
