package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	domain "marquee/internal/domain/consent"
)

// decisionOutput is the JSON shape printed with --json.
type decisionOutput struct {
	Decision    domain.Decision `json:"cookieConsent"`
	Known       bool            `json:"known"`
	NeedsChoice bool            `json:"needsChoice"`
}

func (s *session) print(d domain.Decision) error {
	_, known := s.store.Current()
	if s.jsonOutput {
		data, err := json.MarshalIndent(decisionOutput{
			Decision:    d,
			Known:       known,
			NeedsChoice: s.view.bannerShown,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(s.out, string(data))
		return nil
	}

	fmt.Fprintln(s.out, "Cookie consent")
	fmt.Fprintf(s.out, "  Necessary:      %s\n", onOff(d.Necessary))
	fmt.Fprintf(s.out, "  Analytics:      %s\n", onOff(d.Analytics))
	fmt.Fprintf(s.out, "  Marketing:      %s\n", onOff(d.Marketing))
	fmt.Fprintf(s.out, "  YouTube videos: %s\n", onOff(d.YouTubeVideos))
	if !known {
		fmt.Fprintln(s.out, "  (no choice recorded yet)")
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "granted"
	}
	return "denied"
}

func newShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current consent decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _ := s.store.Current()
			return s.print(d)
		},
	}
}

func newAcceptAllCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "accept-all",
		Short: "Grant every optional category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.print(s.binding.AcceptAll(context.Background()))
		},
	}
}

func newRejectAllCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "reject-all",
		Short: "Keep only necessary cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.print(s.binding.RejectAll(context.Background()))
		},
	}
}

func newSetCmd(s *session) *cobra.Command {
	var analytics, marketing, videos bool
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save an explicit choice; categories not given are denied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p domain.Partial
			if cmd.Flags().Changed("analytics") {
				p.Analytics = &analytics
			}
			if cmd.Flags().Changed("marketing") {
				p.Marketing = &marketing
			}
			if cmd.Flags().Changed("youtube-videos") {
				p.YouTubeVideos = &videos
			}
			return s.print(s.binding.SaveSettings(context.Background(), p))
		},
	}
	cmd.Flags().BoolVar(&analytics, "analytics", false, "allow analytics cookies")
	cmd.Flags().BoolVar(&marketing, "marketing", false, "allow marketing cookies")
	cmd.Flags().BoolVar(&videos, "youtube-videos", false, "allow embedded YouTube videos")
	return cmd
}

func newGrantCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <category>",
		Short: "Grant one category the way a gated embed would (analytics, marketing, youtubeVideos)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := domain.ParseCategory(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", err, args[0])
			}
			d, err := s.binding.RequestEmbed(context.Background(), c)
			if err != nil {
				return err
			}
			return s.print(d)
		},
	}
}

func newRevokeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke",
		Short: "Delete the stored decision on the server and locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.binding.Revoke(context.Background()); err != nil {
				return err
			}
			d, _ := s.store.Current()
			return s.print(d)
		},
	}
}
