package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain queued offline check-ins to the backend",
		Long: `Transmit all queued offline check-ins to the registration backend in
one idempotent batch. Safe to run repeatedly: acceptance is keyed by
nonce, and rows the backend rejects stay queued for the next attempt.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
	return cmd
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
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

	if err := s.engine.RestoreStatus(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read station state", err)
	}

	report, err := s.engine.Reconciler.Drain(ctx)
	if err != nil {
		// Rows remain queued; surface the failure without losing anything.
		return WrapExitError(ExitFailure, "sync failed, check-ins remain queued", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(map[string]int{
			"submitted": report.Submitted,
			"accepted":  report.Accepted,
			"failed":    report.Failed,
			"dead":      report.Dead,
		})
	}
	if report.Submitted == 0 {
		return formatter.Success("nothing to sync")
	}
	return formatter.Success(fmt.Sprintf("synced %d of %d check-ins (%d failed, %d dead-lettered)",
		report.Accepted, report.Submitted, report.Failed, report.Dead))
}
