package harness

// output.go contains the human-readable progress and summary lines
// written to standard output during a run.

import (
	"fmt"
	"io"
	"time"
)

// FormatProgress renders the status line shown before a case runs.
// index is 1-based and total is the size of the whole registry, so
// skipped cases still move the percentage.
func FormatProgress(index, total int, name string) string {
	percentage := 0
	if total > 0 {
		percentage = index * 100 / total
	}
	return fmt.Sprintf("%3d%% [%d/%d]  %-60s", percentage, index, total, name)
}

// WriteProgress writes the progress line terminated by a carriage return
// so the next line overwrites it.
func WriteProgress(w io.Writer, index, total int, name string) error {
	_, err := io.WriteString(w, FormatProgress(index, total, name)+"\r")
	return err
}

// WriteFailure reports a case whose exit status did not match.
func WriteFailure(w io.Writer, name string) error {
	_, err := fmt.Fprintf(w, "%s: Test FAILED\n", name)
	return err
}

// WriteSummary ends the progress line and prints the tally with the
// elapsed wall time.
func WriteSummary(w io.Writer, t Tally, elapsed time.Duration, color bool) error {
	status := t.Status()
	if color {
		status = t.ColoredStatus()
	}
	_, err := fmt.Fprintf(w, "\n%s (%.2f s) \n", status, elapsed.Seconds())
	return err
}
