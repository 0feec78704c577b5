package cli

import (
	"context"

	"github.com/spf13/cobra"

	"gatecheck/internal/engine"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show station state",
		Long:          "Show connectivity, credential cache state, queue depths and scanner state.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
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

	// One probe for the connectivity line; no drain side effects here.
	online := s.client.Ping(ctx) == nil
	st := s.engine.Status.Update(func(st *engine.Status) { st.Online = online })

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(st)
	}
	_, err = cmd.OutOrStdout().Write([]byte(formatStatus(st)))
	return err
}
