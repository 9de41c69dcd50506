package cli

// This file contains the list command for displaying recorded runs.

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jatovm/jato-regress/history"
	"github.com/jatovm/jato-regress/model"
)

// runFailed reports whether a recorded run aborted or had a failed case.
func runFailed(h model.History) bool {
	return h.Error != "" || (h.Run != nil && !h.Run.AllPassed)
}

func (a *App) list(ctx *cli.Context) error {
	onlyFailed := ctx.Bool("failed")
	limit := ctx.Int("limit")

	root, err := history.GetRoot()
	if err != nil {
		return err
	}

	historyEntries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var filteredEntries []history.Entry
	for _, entry := range historyEntries {
		if onlyFailed && !runFailed(entry.History) {
			continue
		}
		filteredEntries = append(filteredEntries, entry)
	}

	if len(filteredEntries) == 0 {
		if onlyFailed {
			fmt.Println("No failed runs found")
		} else {
			fmt.Println("No recorded runs found")
		}
		return nil
	}

	history.SortNewestFirst(filteredEntries)

	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Printf("\n=== History (%d total) ===\n\n", len(filteredEntries))

	for _, entry := range displayRuns {
		h := entry.History
		timestamp := h.Timestamp.Format("2006-01-02 15:04:05")
		duration := h.Duration.Round(time.Millisecond)

		status := "✓"
		if runFailed(h) {
			status = "✗"
		}

		shortID := h.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Printf("%s  %s  [%s]  exit=%d  id=%s\n", status, timestamp, duration, h.ExitCode, shortID)
		if h.Run != nil {
			fmt.Printf("   Cases: %d passed, %d failed, %d of %d selected\n", h.Run.Passed, h.Run.Failed, h.Run.Selected, h.Run.Total)
		}
		if h.Error != "" {
			fmt.Printf("   Error: %s\n", h.Error)
		}
		if len(h.Args) > 1 {
			fmt.Printf("   Args: %s\n", strings.Join(h.Args[1:], " "))
		}
		if h.Target != nil {
			if h.Target.RemoteHost != "" {
				fmt.Printf("   Remote: %s (%s)\n", h.Target.RemoteHost, h.Target.Arch)
			} else if h.Target.Arch != "" {
				fmt.Printf("   Local: %s/%s\n", h.Target.OS, h.Target.Arch)
			}
		}
		if h.Git != nil && h.Git.Commit != "" {
			shortCommit := h.Git.Commit
			if len(shortCommit) > 8 {
				shortCommit = shortCommit[:8]
			}
			fmt.Printf("   Commit: %s", shortCommit)
			if h.Git.Branch != "" {
				fmt.Printf(" (%s)", h.Git.Branch)
			}
			fmt.Println()
		}
		fmt.Printf("   %s\n", entry.FullPath)
		fmt.Println()
	}

	fmt.Printf("View a run: %s view <ID>\n", AppName)

	return nil
}
