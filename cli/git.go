package cli

// This file contains Git integration utilities for retrieving
// repository information recorded with each run.

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/jatovm/jato-regress/model"
)

func gitOutput(args ...string) (string, error) {
	output, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}

// gitInfo returns the checked out commit and branch, or nil outside a
// git repository.
func (a *App) gitInfo() *model.Git {
	commit, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		a.logger.Debug().Err(err).Msg("No git commit available")
		return nil
	}

	info := &model.Git{Commit: commit}
	if branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		info.Branch = branch
	}

	return info
}
