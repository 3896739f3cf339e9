// Package consent is the client-side consent store. It reconciles the decision
// held by the server, the copy kept in local storage, and choices the visitor
// makes on the page, then pushes the winner to tracking integrations.
//
// One Store lives for one page session: construct it, Start it, and Close it on
// navigation. Every transition (initialization, commit, revocation) is serialized,
// and a commit made while initialization is still waiting on the network always
// wins over whatever that read later returns.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	domain "marquee/internal/domain/consent"
)

// EventName is the name carried by every consent change notification.
const EventName = "consent-update"

// Source says which transition produced an Event.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceLocal   Source = "local"
	SourceDefault Source = "default"
	SourceUser    Source = "user"
	SourceUpgrade Source = "upgrade"
	SourceRevoke  Source = "revoke"
)

// Event is the consent-changed notification.
type Event struct {
	Name     string
	Decision domain.Decision
	Source   Source
	// NeedsChoice is true when no stored choice exists and the consent UI must be shown.
	NeedsChoice bool
	// KeepBanner is true for commits that must not dismiss the banner.
	KeepBanner bool
}

// ErrAlreadyInitialized is returned by a second Init on the same Store.
var ErrAlreadyInitialized = errors.New("consent store already initialized")

// CommitOptions tune a single commit.
type CommitOptions struct {
	// KeepBanner leaves the banner visible so the visitor can still review settings.
	KeepBanner bool
	// Source overrides the event source; defaults to SourceUser.
	Source Source
}

// Deps holds the Store's collaborators.
type Deps struct {
	Remote     Remote
	Local      LocalSlot
	Propagator *Propagator
	Clock      clockwork.Clock
}

// Options holds Store tuning.
type Options struct {
	// RemoteTimeout bounds each background remote write. Default 10s.
	RemoteTimeout time.Duration
}

// Store owns the canonical decision and mediates every transition.
type Store struct {
	remote  Remote
	local   LocalSlot
	prop    *Propagator
	clock   clockwork.Clock
	timeout time.Duration

	// seq serializes transitions. Fields below it are only written while it is held.
	seq          sync.Mutex
	committed    bool
	pageviewSent bool
	initStarted  bool
	closed       bool

	mu       sync.RWMutex
	decision domain.Decision
	known    bool

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
	settings  []func(domain.Category)

	bg sync.WaitGroup
}

// NewStore creates a store in the default-deny state.
// PRE: deps.Remote is non-nil
// POST: Returns a store that has not yet read any persisted consent
func NewStore(deps Deps, opts Options) *Store {
	if deps.Local == nil {
		deps.Local = NewMemorySlot()
	}
	if deps.Propagator == nil {
		deps.Propagator = NewPropagator(Integrations{})
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	return &Store{
		remote:    deps.Remote,
		local:     deps.Local,
		prop:      deps.Propagator,
		clock:     deps.Clock,
		timeout:   opts.RemoteTimeout,
		decision:  domain.DefaultDeny(),
		listeners: make(map[int]func(Event)),
	}
}

// Current returns the canonical decision and whether it came from a stored or
// committed choice (false means default-deny with nothing on record).
func (s *Store) Current() (domain.Decision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision, s.known
}

// Committed reports whether a commit or revocation happened during this session.
func (s *Store) Committed() bool {
	s.seq.Lock()
	defer s.seq.Unlock()
	return s.committed
}

// Subscribe registers fn for every consent-update event. The returned func removes it.
// Listeners run synchronously inside the transition and must not call back into
// Commit, RevokeAll or RequestCategory.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// OnSettingsRequested registers fn to run when a category upgrade needs the settings UI.
func (s *Store) OnSettingsRequested(fn func(domain.Category)) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.settings = append(s.settings, fn)
}

// Start runs Init in the background so page rendering is never blocked.
func (s *Store) Start(ctx context.Context) {
	s.seq.Lock()
	defer s.seq.Unlock()
	if s.closed {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if err := s.Init(ctx); err != nil {
			slog.Warn("consent_init_failed", "error", err.Error())
		}
	}()
}

// Init reconciles remote, local and default consent. It runs once per Store.
// PRE: called at most once
// POST: unless a commit already happened, exactly one consent-update event was
// emitted and the winning decision was propagated
func (s *Store) Init(ctx context.Context) error {
	s.seq.Lock()
	if s.initStarted {
		s.seq.Unlock()
		return ErrAlreadyInitialized
	}
	s.initStarted = true
	s.seq.Unlock()

	remote, fetchErr := s.remote.Fetch(ctx)

	s.seq.Lock()
	defer s.seq.Unlock()

	if s.committed {
		slog.Debug("consent_init_discarded", "reason", "user_choice_committed")
		return nil
	}

	switch {
	case fetchErr != nil:
		slog.Warn("consent_remote_fetch_failed", "error", fetchErr.Error())
		if rec, ok := s.readLocal(); ok {
			s.hydrate(rec.Decision, SourceLocal)
		} else {
			s.hydrate(domain.DefaultDeny(), SourceDefault)
		}
	case remote == nil:
		s.hydrate(domain.DefaultDeny(), SourceDefault)
	default:
		s.hydrate(*remote, SourceRemote)
	}
	return nil
}

// hydrate applies an initialization winner. It propagates and persists locally
// like a commit but does not set the commitment flag or write to the server.
// PRE: seq is held
func (s *Store) hydrate(d domain.Decision, src Source) {
	d = d.Normalize()
	known := src != SourceDefault

	s.mu.Lock()
	s.decision = d
	s.known = known
	s.mu.Unlock()

	s.emit(Event{Name: EventName, Decision: d, Source: src, NeedsChoice: !known})
	s.propagate(d)
	if known {
		s.writeLocal(d)
	}
	slog.Info("consent_initialized", "source", string(src), "analytics", d.Analytics, "marketing", d.Marketing, "youtube_videos", d.YouTubeVideos)
}

// Commit restates consent. p is merged over default-deny, never over the current
// decision, so any category p omits is denied.
// POST: commitment flag set; state, event, propagation and local copy updated
// before return; the remote write continues in the background and its failure
// only logs
func (s *Store) Commit(ctx context.Context, p domain.Partial, opts CommitOptions) domain.Decision {
	d := domain.Merge(p)
	src := opts.Source
	if src == "" {
		src = SourceUser
	}

	s.seq.Lock()
	s.committed = true

	s.mu.Lock()
	s.decision = d
	s.known = true
	s.mu.Unlock()

	s.emit(Event{Name: EventName, Decision: d, Source: src, KeepBanner: opts.KeepBanner})
	s.propagate(d)
	s.writeLocal(d)
	s.saveRemote(ctx, d)
	s.seq.Unlock()
	return d
}

// RevokeAll deletes the server record and, only once the server confirms, resets
// to default-deny, clears tracking cookies and asks for consent again.
// POST: on error nothing client-side has changed and the caller may retry
func (s *Store) RevokeAll(ctx context.Context) error {
	if err := s.remote.Delete(ctx); err != nil {
		slog.Warn("consent_revoke_failed", "error", err.Error())
		return fmt.Errorf("revoke consent: %w", err)
	}

	s.seq.Lock()
	defer s.seq.Unlock()

	d := domain.DefaultDeny()
	s.committed = true

	s.mu.Lock()
	s.decision = d
	s.known = false
	s.mu.Unlock()

	s.prop.Apply(d)
	s.pageviewSent = false
	if err := s.local.Remove(domain.StorageKey); err != nil {
		slog.Warn("consent_local_remove_failed", "error", err.Error())
	}
	s.emit(Event{Name: EventName, Decision: d, Source: SourceRevoke, NeedsChoice: true})
	slog.Info("consent_revoked")
	return nil
}

// RequestCategory upgrades consent for gated embedded content. An already granted
// category returns immediately; otherwise the settings UI is requested and a commit
// granting exactly c (everything else default-deny) is made without hiding the banner.
// PRE: c is one of domain.Categories
func (s *Store) RequestCategory(ctx context.Context, c domain.Category) (domain.Decision, error) {
	p, err := domain.Grant(c)
	if err != nil {
		return domain.Decision{}, err
	}
	if cur, _ := s.Current(); cur.Granted(c) {
		return cur, nil
	}

	s.lmu.Lock()
	hooks := append([]func(domain.Category){}, s.settings...)
	s.lmu.Unlock()
	for _, h := range hooks {
		h(c)
	}

	return s.Commit(ctx, p, CommitOptions{KeepBanner: true, Source: SourceUpgrade}), nil
}

// Close waits for background initialization and remote writes to finish.
// Commits after Close still update local state but are not sent to the server.
func (s *Store) Close() {
	s.seq.Lock()
	s.closed = true
	s.seq.Unlock()
	s.bg.Wait()
}

// propagate applies d and gates the initial pageview.
// PRE: seq is held
func (s *Store) propagate(d domain.Decision) {
	s.prop.Apply(d)
	s.pageviewSent = s.prop.InitialPageview(d, s.pageviewSent)
}

func (s *Store) emit(e Event) {
	s.lmu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (s *Store) readLocal() (domain.PersistedRecord, bool) {
	b, ok, err := s.local.Get(domain.StorageKey)
	if err != nil {
		slog.Warn("consent_local_read_failed", "error", err.Error())
		return domain.PersistedRecord{}, false
	}
	if !ok {
		return domain.PersistedRecord{}, false
	}
	rec, err := domain.DecodeRecord(b)
	if err != nil {
		slog.Debug("consent_local_record_ignored", "error", err.Error())
		return domain.PersistedRecord{}, false
	}
	return rec, true
}

func (s *Store) writeLocal(d domain.Decision) {
	b, err := domain.PersistedRecord{Decision: d, SavedAt: s.clock.Now().UTC()}.Encode()
	if err == nil {
		err = s.local.Set(domain.StorageKey, b)
	}
	if err != nil {
		slog.Warn("consent_local_write_failed", "error", err.Error())
	}
}

// saveRemote writes d to the server without blocking the caller. The caller's
// cancellation is detached: a commit outlives the click that produced it.
// PRE: seq is held
func (s *Store) saveRemote(ctx context.Context, d domain.Decision) {
	if s.closed {
		slog.Warn("consent_remote_save_skipped", "reason", "store_closed")
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.remote.Save(ctx, d); err != nil {
			slog.Warn("consent_remote_save_failed", "error", err.Error())
			return
		}
		slog.Debug("consent_remote_saved")
	}()
}
