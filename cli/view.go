package cli

// This file contains the view command for displaying a recorded run.

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/jatovm/jato-regress/history"
	"github.com/jatovm/jato-regress/model"
)

// parseViewArgs splits the raw view arguments into the run selector and
// the --output switch. Flag parsing is done here because negative
// indexes such as "-1" would otherwise be taken for flags.
func parseViewArgs(in []string) (idArg string, showOutput bool, err error) {
	idArg = "0"
	idSet := false

	for _, arg := range in {
		switch arg {
		case "--":
			continue
		case "-o", "--output", "-output":
			showOutput = true
			continue
		}

		if len(arg) > 1 && arg[0] == '-' {
			if _, err := strconv.ParseInt(arg, 10, 64); err != nil {
				return "", false, fmt.Errorf("unknown flag: %s", arg)
			}
		}
		if idSet {
			return "", false, fmt.Errorf("unexpected argument: %s", arg)
		}
		idArg = arg
		idSet = true
	}

	return idArg, showOutput, nil
}

func (a *App) view(ctx *cli.Context) error {
	arg, showOutput, err := parseViewArgs(ctx.Args().Slice())
	if err != nil {
		return err
	}

	root, err := history.GetRoot()
	if err != nil {
		return err
	}

	historyEntries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(historyEntries) == 0 {
		return fmt.Errorf("no history entries found")
	}

	history.SortNewestFirst(historyEntries)

	entry, err := history.Find(historyEntries, arg)
	if err != nil {
		return err
	}

	displayHistoryEntry(a.stdout, entry)

	if showOutput {
		return displayOutput(a.stdout, entry)
	}
	return nil
}

func displayHistoryEntry(w io.Writer, entry *history.Entry) {
	h := entry.History

	shortID := h.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	fmt.Fprintf(w, "=== Run: %s ===\n", shortID)
	fmt.Fprintf(w, "Time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n", h.Duration)
	fmt.Fprintf(w, "Exit Code: %d\n", h.ExitCode)
	if h.WorkDir != "" {
		fmt.Fprintf(w, "Working Dir: %s\n", h.WorkDir)
	}
	if h.Git != nil && h.Git.Commit != "" {
		commit := h.Git.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Fprintf(w, "Git Commit: %s", commit)
		if h.Git.Branch != "" {
			fmt.Fprintf(w, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(w)
	}
	if h.Target != nil {
		if h.Target.RemoteHost != "" {
			fmt.Fprintf(w, "Target: %s (%s)\n", h.Target.RemoteHost, h.Target.Arch)
		} else {
			fmt.Fprintf(w, "Target: local (%s)\n", h.Target.Arch)
		}
	}
	if h.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", h.Error)
	}

	if h.Run == nil {
		fmt.Fprintln(w)
		return
	}

	run := h.Run
	fmt.Fprintf(w, "Runtime: %s -cp %s\n", run.Runtime, run.TestDir)
	if run.Registry != "" {
		fmt.Fprintf(w, "Registry: %s\n", run.Registry)
	}
	fmt.Fprintf(w, "Cases: %d passed, %d failed, %d of %d selected\n", run.Passed, run.Failed, run.Selected, run.Total)
	fmt.Fprintf(w, "Last Exit Code: %d\n", run.LastExitCode)
	fmt.Fprintln(w)

	var failed []model.CaseResult
	for _, c := range run.Cases {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	if len(failed) == 0 {
		fmt.Fprintln(w, "No failed cases")
		return
	}

	fmt.Fprintln(w, "Failed cases:")
	for _, c := range failed {
		fmt.Fprintf(w, "  [%d] %s: expected %d, got %d", c.Index, c.Name, c.Expected, c.Actual)
		if c.Signal != "" {
			fmt.Fprintf(w, " (%s)", c.Signal)
		}
		fmt.Fprintln(w)
		if c.Command != "" {
			fmt.Fprintf(w, "      %s\n", c.Command)
		}
	}
}

func displayOutput(w io.Writer, entry *history.Entry) error {
	shown := false
	for _, artifact := range entry.History.Artifacts {
		if artifact.Type != model.ArtifactTypeStdout && artifact.Type != model.ArtifactTypeStderr {
			continue
		}
		path := filepath.Join(entry.FullPath, artifact.File)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", artifact.Type, err)
		}
		fmt.Fprintf(w, "\nRuntime Output (%s): %s\n", artifact.Type, path)
		fmt.Fprintln(w, string(data))
		shown = true
	}

	if !shown {
		fmt.Fprintln(w, "\nNo runtime output was captured")
	}
	return nil
}
