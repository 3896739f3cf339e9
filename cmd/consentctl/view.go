package main

import (
	"fmt"
	"io"

	domain "marquee/internal/domain/consent"
)

// textView renders the consent UI state as lines of text. Only the banner
// and revoke transitions are printed, and only in verbose mode.
type textView struct {
	out     io.Writer
	verbose bool

	bannerShown bool
	revokeShown bool
	toggles     domain.Decision
	retryErr    error
}

func (v *textView) logf(format string, args ...any) {
	if v.verbose {
		fmt.Fprintf(v.out, format+"\n", args...)
	}
}

func (v *textView) ShowBanner() {
	v.bannerShown = true
	v.logf("banner: shown")
}

func (v *textView) HideBanner() {
	v.bannerShown = false
	v.logf("banner: hidden")
}

func (v *textView) ShowSettings() {
	v.logf("settings: opened")
}

func (v *textView) ShowRevoke() {
	v.revokeShown = true
}

func (v *textView) HideRevoke() {
	v.revokeShown = false
}

func (v *textView) SyncToggles(d domain.Decision) {
	v.toggles = d
}

func (v *textView) SetRevokeBusy(busy bool) {
	if busy {
		v.logf("revoke: working")
	}
}

func (v *textView) EnableRevokeRetry(err error) {
	v.retryErr = err
	v.logf("revoke: failed, retry available (%v)", err)
}
