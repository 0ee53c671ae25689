package main

import (
	"github.com/spf13/cobra"

	"monoc/internal/buildpipeline"
	"monoc/internal/ui"
)

// withProgress runs work, rendering its progress events when the TUI is
// enabled. work must not return before it stops sending to its sink.
func withProgress(cmd *cobra.Command, s *settings, title string, work func(buildpipeline.ProgressSink) error) error {
	if !shouldUseTUI(s.ui) {
		return work(nil)
	}
	events := make(chan buildpipeline.Event, 256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- work(buildpipeline.ChannelSink{Ch: events})
		close(events)
	}()

	uiErr := ui.RunProgress(title, nil, events, cmd.ErrOrStderr())
	// the view may quit early; keep the producer from blocking
	for range events {
	}
	err := <-errCh
	if err != nil {
		return err
	}
	return uiErr
}
