package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gatecheck/internal/httpapi"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the check-in station",
		Long: `Start the check-in station: refresh the credential cache when an event
is configured, serve the local status API, watch backend connectivity,
and process scan payloads from stdin (keyboard-wedge scanner).

Example:
  GATECHECK_EVENT=event-1 gatecheck run
  gatecheck run --config station.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStation(rootOpts, cmd)
		},
	}
	return cmd
}

func runStation(opts *RootOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	s, err := openStation(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Counts and cache state survive restarts.
	if err := s.engine.RestoreStatus(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to restore station state", err)
	}

	if s.cfg.EventID != "" {
		if err := s.engine.RefreshCache(ctx, s.cfg.EventID); err != nil {
			// A failed refresh is fatal only when there is nothing cached to
			// admit against.
			if s.engine.Status.Get().CacheCount == 0 {
				return WrapExitError(ExitCommandError, "no credential cache and refresh failed", err)
			}
			slog.Warn("refresh failed, running on cached credentials", "error", err)
		}
	} else if s.engine.Status.Get().CacheCount == 0 {
		return NewExitError(ExitCommandError, "no credential cache: configure GATECHECK_EVENT and run while online")
	}

	go func() {
		if err := s.engine.Monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("connectivity monitor stopped", "error", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: httpapi.NewServer(s.engine).Router(),
	}
	go func() {
		slog.Info("status API listening", "addr", s.cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status API failed", "error", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	st := s.engine.Status.Get()
	fmt.Fprintf(cmd.OutOrStdout(), "Station ready: %s station, event %s, %d credentials cached.\n",
		s.cfg.CheckinType, st.ActiveEvent, st.CacheCount)
	fmt.Fprintln(cmd.OutOrStdout(), "Scan tokens below. Press Ctrl-C to stop.")

	if err := scanLoop(ctx, s, cmd); err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("station stopped gracefully")
	return nil
}

// scanLoop feeds stdin lines through the scan state machine until EOF or
// cancellation. Keyboard-wedge scanners type the payload and press enter.
func scanLoop(ctx context.Context, s *station, cmd *cobra.Command) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			errCh <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			payload := strings.TrimSpace(line)
			if payload == "" {
				continue
			}
			dec, processed := s.engine.Scanner.Scan(ctx, payload)
			if !processed {
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatDecision(*dec))
		}
	}
}
