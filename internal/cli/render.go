package cli

import (
	"fmt"
	"strings"

	"gatecheck/internal/engine"
	"gatecheck/internal/store"
)

// formatDecision renders one scan outcome for the operator console.
func formatDecision(d engine.Decision) string {
	if d.Admitted() {
		line := fmt.Sprintf("OK    %s", d.PersonName)
		if d.KoreanName != "" {
			line += " " + d.KoreanName
		}
		line += fmt.Sprintf(" (%s)", d.ConfirmationCode)
		if d.Offline {
			line += " [offline]"
		}
		return line
	}
	line := "DENY  "
	if d.PersonName != "" {
		line += d.PersonName + ": "
	}
	line += d.Reason
	return line
}

// formatStatus renders the station status block.
func formatStatus(st engine.Status) string {
	var b strings.Builder

	online := "no"
	if st.Online {
		online = "yes"
	}
	fmt.Fprintf(&b, "Online:        %s\n", online)
	fmt.Fprintf(&b, "Cache:         %s (%d credentials)\n", st.CacheState, st.CacheCount)
	if !st.CacheLoadedAt.IsZero() {
		fmt.Fprintf(&b, "Loaded at:     %s\n", st.CacheLoadedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if st.ActiveEvent != "" {
		fmt.Fprintf(&b, "Event:         %s\n", st.ActiveEvent)
	}
	fmt.Fprintf(&b, "Pending:       %d\n", st.PendingCount)
	fmt.Fprintf(&b, "Dead letters:  %d\n", st.DeadCount)

	scanner := "scanning"
	if st.ScannerPaused {
		scanner = "paused"
	}
	fmt.Fprintf(&b, "Scanner:       %s\n", scanner)

	if st.StoreError != "" {
		fmt.Fprintf(&b, "Store error:   %s\n", st.StoreError)
	}
	return b.String()
}

// formatLog renders recent check-in log entries, newest first. The name
// column is padded by display width so Korean names line up.
func formatLog(entries []store.LogEntry) string {
	if len(entries) == 0 {
		return "no check-ins recorded\n"
	}

	nameWidth := 0
	for _, e := range entries {
		if w := displayWidth(logName(e)); w > nameWidth {
			nameWidth = w
		}
	}

	var b strings.Builder
	for _, e := range entries {
		mark := "OK  "
		if e.Status != engine.OutcomeCheckedIn {
			mark = "ERR "
		}
		fmt.Fprintf(&b, "%s  %s  %s  %-7s  %s",
			e.RecordedAt.Format("15:04:05"),
			mark,
			padRight(logName(e), nameWidth),
			e.CheckinType,
			e.ConfirmationCode,
		)
		if e.IsOffline {
			b.WriteString("  [offline]")
		}
		if e.ErrorMessage != "" {
			b.WriteString("  " + e.ErrorMessage)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func logName(e store.LogEntry) string {
	if e.KoreanName != "" {
		return e.PersonName + " " + e.KoreanName
	}
	return e.PersonName
}
