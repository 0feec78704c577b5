package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"gatecheck/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "log",
		Short:         "Show recent check-ins",
		Long:          "Show the station's recent check-in log, newest first.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum entries to show")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "limit must be positive")
	}

	s, err := openStation(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entries, err := s.store.RecentLog(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read check-in log", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(logEntriesJSON(entries))
	}
	_, err = cmd.OutOrStdout().Write([]byte(formatLog(entries)))
	return err
}

type logEntryJSON struct {
	PersonName       string `json:"personName"`
	KoreanName       string `json:"koreanName,omitempty"`
	ConfirmationCode string `json:"confirmationCode"`
	Status           string `json:"status"`
	CheckinType      string `json:"checkinType"`
	RecordedAt       string `json:"recordedAt"`
	IsOffline        bool   `json:"isOffline"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

func logEntriesJSON(entries []store.LogEntry) []logEntryJSON {
	out := make([]logEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, logEntryJSON{
			PersonName:       e.PersonName,
			KoreanName:       e.KoreanName,
			ConfirmationCode: e.ConfirmationCode,
			Status:           e.Status,
			CheckinType:      e.CheckinType,
			RecordedAt:       e.RecordedAt.UTC().Format(time.RFC3339),
			IsOffline:        e.IsOffline,
			ErrorMessage:     e.ErrorMessage,
		})
	}
	return out
}
