package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatovm/jato-regress/cli/vm"
	"github.com/jatovm/jato-regress/harness"
	"github.com/jatovm/jato-regress/history"
	"github.com/jatovm/jato-regress/model"
	"github.com/jatovm/jato-regress/registry"
)

func TestUseColor(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	color, err := useColor("always", f)
	require.NoError(t, err)
	assert.True(t, color)

	color, err = useColor("never", f)
	require.NoError(t, err)
	assert.False(t, color)

	// A regular file is not a terminal
	color, err = useColor("auto", f)
	require.NoError(t, err)
	assert.False(t, color)

	_, err = useColor("sometimes", f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid --color "sometimes"`)
}

func TestExitCode(t *testing.T) {
	passed := &harness.Report{Tally: harness.Tally{Passed: 2}, ExitCode: 1}
	failed := &harness.Report{Tally: harness.Tally{Passed: 1, Failed: 1}, ExitCode: 0}
	empty := &harness.Report{}

	assert.Equal(t, 1, exitCode(passed, false))
	assert.Equal(t, 0, exitCode(passed, true))
	assert.Equal(t, 0, exitCode(failed, false))
	assert.Equal(t, 1, exitCode(failed, true))
	assert.Equal(t, 0, exitCode(empty, false))
	assert.Equal(t, 0, exitCode(empty, true))
}

func TestNewRunID(t *testing.T) {
	a, err := newRunID()
	require.NoError(t, err)
	b, err := newRunID()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestPrintCases(t *testing.T) {
	reg := registry.New(
		registry.TestCase{Name: "jvm/EntryTest", Archs: []string{"i386", "x86_64"}},
		registry.TestCase{Name: "jvm.ArrayTest", Archs: []string{"i386"}},
		registry.TestCase{Name: "jvm.ParameterPassingTest", ExpectedExitCode: 100, Archs: []string{"x86_64"}},
	)
	opts := vm.Options{Runtime: "./jato", TestDir: "regression"}

	var buf bytes.Buffer
	printCases(&buf, reg, "x86_64", opts, true)

	out := buf.String()
	assert.Contains(t, out, "  1  run   jvm/EntryTest")
	assert.Contains(t, out, "  2  skip  jvm.ArrayTest")
	assert.Contains(t, out, "exit=100 [x86_64]\n")
	assert.Contains(t, out, "     ./jato -cp regression jvm.ParameterPassingTest\n")
	assert.Contains(t, out, "\n2 of 3 cases selected for x86_64\n")
}

func testReport() *harness.Report {
	return &harness.Report{
		Arch:     "x86_64",
		Total:    3,
		Selected: 2,
		Tally:    harness.Tally{Passed: 1, Failed: 1},
		ExitCode: 2,
		Results: []harness.Result{
			{Index: 1, Name: "jvm/EntryTest", Passed: true, Command: "./jato -cp regression jvm/EntryTest"},
			{Index: 3, Name: "jvm.CloneTest", Actual: 2, Command: "./jato -cp regression jvm.CloneTest"},
		},
	}
}

func TestTestRunFromReport(t *testing.T) {
	run := testRunFromReport(testReport())

	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Selected)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.AllPassed)
	assert.Equal(t, 2, run.LastExitCode)
	require.Len(t, run.Cases, 2)
	assert.Equal(t, model.CaseResult{Index: 3, Name: "jvm.CloneTest", Actual: 2, Command: "./jato -cp regression jvm.CloneTest"}, run.Cases[1])
}

func TestRecordHistory(t *testing.T) {
	a := &App{logger: zerolog.Nop()}
	base := t.TempDir()

	h := &model.History{
		ID:        "0123456789abcdef0123456789abcdef",
		Timestamp: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
		ExitCode:  2,
		Run:       testRunFromReport(testReport()),
	}

	runDir, err := a.createRunDir(base, h)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "20240304-050607-nogit-01234567"), runDir)

	require.NoError(t, a.recordHistory(h, runDir, []byte("out"), nil, []byte("cases: []\n")))

	assert.FileExists(t, filepath.Join(runDir, "stdout.txt"))
	assert.NoFileExists(t, filepath.Join(runDir, "stderr.txt"))
	assert.FileExists(t, filepath.Join(runDir, "registry.yaml"))

	data, err := os.ReadFile(filepath.Join(runDir, history.FileName))
	require.NoError(t, err)

	var got model.History
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, h.ID, got.ID)
	assert.Equal(t, 2, got.ExitCode)
	require.Len(t, got.Artifacts, 2)
	assert.Equal(t, model.ArtifactTypeStdout, got.Artifacts[0].Type)
	assert.Equal(t, model.ArtifactTypeRegistry, got.Artifacts[1].Type)
	require.NotNil(t, got.Run)
	assert.Equal(t, "jvm.CloneTest", got.Run.Cases[1].Name)

	entries, err := history.LoadEntries(zerolog.Nop(), base)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, runFailed(entries[0].History))
}

func TestCreateRunDir_WithCommit(t *testing.T) {
	a := &App{logger: zerolog.Nop()}
	base := t.TempDir()

	h := &model.History{
		ID:        "abc",
		Timestamp: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
		Git:       &model.Git{Commit: "deadbeefcafebabe"},
	}

	runDir, err := a.createRunDir(base, h)
	require.NoError(t, err)
	assert.Equal(t, "20240304-050607-deadbeef-abc", filepath.Base(runDir))
	assert.DirExists(t, runDir)
}
