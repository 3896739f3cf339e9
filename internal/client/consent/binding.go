package consent

import (
	"context"

	domain "marquee/internal/domain/consent"
)

// View is the consent UI: banner, settings modal, category toggles and the
// persistent revoke control.
type View interface {
	ShowBanner()
	HideBanner()
	ShowSettings()
	ShowRevoke()
	HideRevoke()
	SyncToggles(d domain.Decision)
	SetRevokeBusy(busy bool)
	EnableRevokeRetry(err error)
}

// Binding projects Store events onto a View and turns clicks into Store calls.
// It has no state of its own.
type Binding struct {
	store       *Store
	view        View
	unsubscribe func()
}

// Bind attaches view to store. Call before Store.Start so the initialization
// event is reflected.
func Bind(store *Store, view View) *Binding {
	b := &Binding{store: store, view: view}
	b.unsubscribe = store.Subscribe(b.reflect)
	store.OnSettingsRequested(func(domain.Category) { view.ShowSettings() })
	return b
}

func (b *Binding) reflect(e Event) {
	b.view.SyncToggles(e.Decision)
	switch {
	case e.NeedsChoice:
		b.view.HideRevoke()
		b.view.ShowBanner()
	case e.KeepBanner:
		b.view.ShowRevoke()
	default:
		b.view.HideBanner()
		b.view.ShowRevoke()
	}
}

// AcceptAll handles the "accept all" button.
func (b *Binding) AcceptAll(ctx context.Context) domain.Decision {
	return b.store.Commit(ctx, domain.PartialOf(domain.AcceptAll()), CommitOptions{})
}

// RejectAll handles the "necessary only" button.
func (b *Binding) RejectAll(ctx context.Context) domain.Decision {
	return b.store.Commit(ctx, domain.Partial{}, CommitOptions{})
}

// SaveSettings handles the settings modal save. p should restate every toggle;
// anything missing is denied.
func (b *Binding) SaveSettings(ctx context.Context, p domain.Partial) domain.Decision {
	return b.store.Commit(ctx, p, CommitOptions{})
}

// OpenSettings handles the "manage preferences" link.
func (b *Binding) OpenSettings() {
	cur, _ := b.store.Current()
	b.view.SyncToggles(cur)
	b.view.ShowSettings()
}

// Revoke handles the revoke control. On failure the control is re-enabled for retry.
func (b *Binding) Revoke(ctx context.Context) error {
	b.view.SetRevokeBusy(true)
	err := b.store.RevokeAll(ctx)
	b.view.SetRevokeBusy(false)
	if err != nil {
		b.view.EnableRevokeRetry(err)
	}
	return err
}

// RequestEmbed is the entry point for gated embeds asking for a category.
func (b *Binding) RequestEmbed(ctx context.Context, c domain.Category) (domain.Decision, error) {
	return b.store.RequestCategory(ctx, c)
}

// Close detaches the view from the store.
func (b *Binding) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}
