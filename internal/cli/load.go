package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <event-id>",
		Short: "Refresh the credential cache for an event",
		Long: `Pull the full credential snapshot for an event from the registration
backend and install it atomically, replacing any previously loaded event.
Run this while online before taking the station to the venue.

Example:
  gatecheck load rc-2026`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return loadEvent(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func loadEvent(opts *RootOptions, eventID string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	s, err := openStation(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.engine.RefreshCache(ctx, eventID); err != nil {
		return WrapExitError(ExitFailure, "credential refresh failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	st := s.engine.Status.Get()
	if opts.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"event":       eventID,
			"credentials": st.CacheCount,
		})
	}
	return formatter.Success(fmt.Sprintf("loaded %d credentials for event %s", st.CacheCount, eventID))
}
