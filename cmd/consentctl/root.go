package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"marquee/internal/client/consent"
	"marquee/internal/client/tracking"
)

const visitorKey = "sm_visitor"

// session is the per-invocation client state built in PersistentPreRunE.
type session struct {
	endpoint   string
	stateDir   string
	propertyID string
	timeout    time.Duration
	jsonOutput bool
	verbose    bool

	out       io.Writer
	slot      *consent.FileSlot
	store     *consent.Store
	binding   *consent.Binding
	view      *textView
	dataLayer *tracking.DataLayer
}

func defaultEndpoint() string {
	if s := os.Getenv("MARQUEE_CONSENT_URL"); s != "" {
		return s
	}
	return "http://localhost:8080/api/cookie-consent"
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "marquee")
	}
	return ".marquee"
}

func newRootCmd(out io.Writer) *cobra.Command {
	s := &session{out: out}

	root := &cobra.Command{
		Use:           "consentctl <command>",
		Short:         "Inspect and change cookie consent for this machine's visitor identity",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.close()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&s.endpoint, "url", defaultEndpoint(), "consent API endpoint")
	root.PersistentFlags().StringVar(&s.stateDir, "state-dir", defaultStateDir(), "directory holding the local consent copy and visitor id")
	root.PersistentFlags().StringVar(&s.propertyID, "property", "", "analytics property id whose disable flag is maintained")
	root.PersistentFlags().DurationVar(&s.timeout, "timeout", 10*time.Second, "remote request timeout")
	root.PersistentFlags().BoolVar(&s.jsonOutput, "json", false, "output as JSON")
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "print banner and tracking activity")

	root.AddCommand(
		newShowCmd(s),
		newAcceptAllCmd(s),
		newRejectAllCmd(s),
		newSetCmd(s),
		newGrantCmd(s),
		newRevokeCmd(s),
	)
	return root
}

// open builds the store and reconciles persisted consent.
func (s *session) open() error {
	slot, err := consent.NewFileSlot(s.stateDir)
	if err != nil {
		return err
	}
	s.slot = slot

	visitorID, err := s.visitorID()
	if err != nil {
		return err
	}

	s.dataLayer = tracking.EnsureDataLayer(nil)
	prop := consent.NewPropagator(consent.Integrations{
		Sink:    s.dataLayer,
		Jar:     tracking.NewMemoryJar(),
		Globals: tracking.NewGlobals(s.propertyID),
	})

	s.store = consent.NewStore(consent.Deps{
		Remote:     consent.NewHTTPRemote(s.endpoint, nil, visitorID),
		Local:      slot,
		Propagator: prop,
	}, consent.Options{RemoteTimeout: s.timeout})

	s.view = &textView{out: s.out, verbose: s.verbose}
	s.binding = consent.Bind(s.store, s.view)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.store.Init(ctx)
}

// visitorID returns the identity stored in the slot, creating one on first use.
func (s *session) visitorID() (string, error) {
	b, ok, err := s.slot.Get(visitorKey)
	if err != nil {
		return "", err
	}
	if ok {
		if id, err := uuid.ParseBytes(b); err == nil {
			return id.String(), nil
		}
	}
	id := uuid.NewString()
	if err := s.slot.Set(visitorKey, []byte(id)); err != nil {
		return "", fmt.Errorf("store visitor id: %w", err)
	}
	return id, nil
}

// close waits for background remote saves before the process exits.
func (s *session) close() {
	if s.binding != nil {
		s.binding.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.verbose && s.dataLayer != nil {
		for _, c := range s.dataLayer.ConsentCalls() {
			fmt.Fprintf(s.out, "tracking: consent %s analytics_storage=%s ad_storage=%s\n",
				c.Command, c.Signal.AnalyticsStorage, c.Signal.AdStorage)
		}
	}
}
