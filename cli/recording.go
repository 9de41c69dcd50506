package cli

// This file contains run recording functionality for saving harness
// reports and captured runtime output to the history directory.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jatovm/jato-regress/harness"
	"github.com/jatovm/jato-regress/history"
	"github.com/jatovm/jato-regress/model"
)

// prepareHistoryDir creates <repo>/.jato-regress/history/<timestamp>-<commit>-<id>
// and rewrites h.WorkDir relative to the repository root.
func (a *App) prepareHistoryDir(h *model.History) (string, error) {
	repoRoot, err := history.RepoRoot()
	if err != nil {
		return "", err
	}

	if h.Git != nil {
		h.Git.Repo = filepath.Base(repoRoot)
	}

	relPath := "."
	if h.WorkDir != "" {
		if rel, err := filepath.Rel(repoRoot, h.WorkDir); err == nil {
			relPath = rel
		}
	}
	h.WorkDir = relPath

	return a.createRunDir(filepath.Join(repoRoot, history.DirName, "history"), h)
}

func (a *App) createRunDir(base string, h *model.History) (string, error) {
	timestamp := h.Timestamp.Format("20060102-150405")
	shortCommit := "nogit"
	if h.Git != nil && h.Git.Commit != "" {
		shortCommit = h.Git.Commit
		if len(shortCommit) > 8 {
			shortCommit = shortCommit[:8]
		}
	}
	shortID := h.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	runDir := filepath.Join(base, fmt.Sprintf("%s-%s-%s", timestamp, shortCommit, shortID))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	return runDir, nil
}

// recordHistory writes captured output artifacts and history.json into runDir.
func (a *App) recordHistory(h *model.History, runDir string, stdout, stderr, registrySource []byte) error {
	artifacts := []struct {
		typ  model.ArtifactType
		file string
		data []byte
	}{
		{model.ArtifactTypeStdout, "stdout.txt", stdout},
		{model.ArtifactTypeStderr, "stderr.txt", stderr},
		{model.ArtifactTypeRegistry, "registry.yaml", registrySource},
	}

	for _, artifact := range artifacts {
		if len(artifact.data) == 0 {
			continue
		}
		if err := os.WriteFile(filepath.Join(runDir, artifact.file), artifact.data, 0644); err != nil {
			a.logger.Warn().Err(err).Str("file", artifact.file).Msg("Failed to write artifact")
			continue
		}
		h.Artifacts = append(h.Artifacts, model.Artifact{
			Type: artifact.typ,
			Size: uint64(len(artifact.data)),
			File: artifact.file,
		})
	}

	metadataJSON, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.WriteFile(filepath.Join(runDir, history.FileName), metadataJSON, 0644); err != nil {
		return fmt.Errorf("failed to write history metadata: %w", err)
	}

	a.logger.Debug().Str("dir", runDir).Str("id", h.ID).Msg("Recorded run")
	return nil
}

// testRunFromReport converts a harness report into its recorded form.
func testRunFromReport(report *harness.Report) *model.TestRun {
	run := &model.TestRun{
		Total:        report.Total,
		Selected:     report.Selected,
		Passed:       report.Tally.Passed,
		Failed:       report.Tally.Failed,
		AllPassed:    report.AllPassed(),
		LastExitCode: report.ExitCode,
	}
	for _, res := range report.Results {
		run.Cases = append(run.Cases, model.CaseResult{
			Index:    res.Index,
			Name:     res.Name,
			Expected: res.Expected,
			Actual:   res.Actual,
			Signal:   res.Signal,
			Passed:   res.Passed,
			Command:  res.Command,
		})
	}
	return run
}
