package harness

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jatovm/jato-regress/registry"
	"github.com/rs/zerolog"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor returns canned outcomes keyed by case name, in call order
// for names that appear more than once.
type fakeExecutor struct {
	outcomes map[string][]Outcome
	errs     map[string]error
	calls    []string
}

func (f *fakeExecutor) Execute(_ context.Context, tc registry.TestCase) (Outcome, error) {
	f.calls = append(f.calls, tc.Name)
	if err := f.errs[tc.Name]; err != nil {
		return Outcome{}, err
	}
	queue := f.outcomes[tc.Name]
	if len(queue) == 0 {
		return Outcome{}, nil
	}
	out := queue[0]
	f.outcomes[tc.Name] = queue[1:]
	return out, nil
}

func exits(codes map[string]int) map[string][]Outcome {
	out := make(map[string][]Outcome, len(codes))
	for name, code := range codes {
		out[name] = []Outcome{{ExitCode: code}}
	}
	return out
}

// stepClock returns start on the first call and start+step on every
// following call.
func stepClock(step time.Duration) func() time.Time {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(step)
	}
}

func newTestHarness(exec Executor, out *bytes.Buffer, color bool) *Harness {
	return New(zerolog.Nop(), exec,
		WithOutput(out),
		WithColor(color),
		WithClock(stepClock(1500*time.Millisecond)),
	)
}

func twoCaseRegistry() *registry.Registry {
	return registry.New(
		registry.TestCase{Name: "A", ExpectedExitCode: 0, Archs: []string{"x86_64"}},
		registry.TestCase{Name: "B", ExpectedExitCode: 1, Archs: []string{"x86_64"}},
	)
}

func TestRun_AllPassLastExitCodeSurfaces(t *testing.T) {
	exec := &fakeExecutor{outcomes: exits(map[string]int{"A": 0, "B": 1})}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, false).Run(context.Background(), twoCaseRegistry(), "x86_64")
	require.NoError(t, err)

	assert.Equal(t, Tally{Passed: 2, Failed: 0}, report.Tally)
	assert.Equal(t, 1, report.ExitCode)
	assert.True(t, report.AllPassed())
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1500*time.Millisecond, report.Elapsed)
	assert.Contains(t, out.String(), "2 tests passed (1.50 s) \n")
	assert.NotContains(t, out.String(), "FAILED")
}

func TestRun_UnsupportedArchSkipsEverything(t *testing.T) {
	exec := &fakeExecutor{outcomes: exits(map[string]int{"A": 0, "B": 1})}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, true).Run(context.Background(), twoCaseRegistry(), "arm64")
	require.NoError(t, err)

	assert.Empty(t, exec.calls)
	assert.Equal(t, Tally{}, report.Tally)
	assert.Equal(t, 0, report.ExitCode)
	assert.Equal(t, 0, report.Selected)
	assert.Empty(t, report.Results)
	assert.Equal(t, "\nNo tests run (1.50 s) \n", out.String())
}

func TestRun_SingleFailure(t *testing.T) {
	reg := registry.New(registry.TestCase{Name: "jvm.CloneTest", ExpectedExitCode: 0, Archs: []string{"x86_64"}})
	exec := &fakeExecutor{outcomes: exits(map[string]int{"jvm.CloneTest": 2})}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, true).Run(context.Background(), reg, "x86_64")
	require.NoError(t, err)

	assert.Equal(t, Tally{Failed: 1}, report.Tally)
	assert.Equal(t, 2, report.ExitCode)
	assert.False(t, report.AllPassed())
	assert.Contains(t, out.String(), "jvm.CloneTest: Test FAILED\n")
	assert.Contains(t, out.String(), "\033[31mNo tests passed, 1 test failed\033[0m")

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, Result{Index: 1, Name: "jvm.CloneTest", Expected: 0, Actual: 2}, failed[0])
}

func TestRun_SignalledChildIsFailure(t *testing.T) {
	reg := registry.New(registry.TestCase{Name: "jvm.GcTortureTest", ExpectedExitCode: 0, Archs: []string{"i386"}})
	exec := &fakeExecutor{outcomes: map[string][]Outcome{
		"jvm.GcTortureTest": {{ExitCode: -11, Signal: "segmentation fault"}},
	}}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, false).Run(context.Background(), reg, "i386")
	require.NoError(t, err)

	assert.Equal(t, Tally{Failed: 1}, report.Tally)
	assert.Equal(t, -11, report.ExitCode)
	assert.Equal(t, "segmentation fault", report.Results[0].Signal)
	assert.Contains(t, out.String(), "jvm.GcTortureTest: Test FAILED\n")
}

func TestRun_ExitCodeIsLastExecutedNotLastRegistered(t *testing.T) {
	reg := registry.New(
		registry.TestCase{Name: "A", ExpectedExitCode: 0, Archs: []string{"i386", "x86_64"}},
		registry.TestCase{Name: "P", ExpectedExitCode: 100, Archs: []string{"x86_64"}},
		registry.TestCase{Name: "Z", ExpectedExitCode: 0, Archs: []string{"i386"}},
	)
	exec := &fakeExecutor{outcomes: exits(map[string]int{"A": 3, "P": 100, "Z": 0})}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, false).Run(context.Background(), reg, "x86_64")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "P"}, exec.calls)
	assert.Equal(t, 100, report.ExitCode)
	assert.Equal(t, Tally{Passed: 1, Failed: 1}, report.Tally)
}

func TestRun_ProgressUsesRegistrySize(t *testing.T) {
	reg := registry.New(
		registry.TestCase{Name: "A", Archs: []string{"i386"}},
		registry.TestCase{Name: "B", Archs: []string{"x86_64"}},
		registry.TestCase{Name: "C", Archs: []string{"i386"}},
		registry.TestCase{Name: "D", Archs: []string{"x86_64"}},
	)
	exec := &fakeExecutor{outcomes: map[string][]Outcome{}}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, false).Run(context.Background(), reg, "x86_64")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Selected)
	assert.Contains(t, out.String(), FormatProgress(2, 4, "B")+"\r")
	assert.Contains(t, out.String(), FormatProgress(4, 4, "D")+"\r")
	assert.NotContains(t, out.String(), "[1/4]")
	assert.NotContains(t, out.String(), "[3/4]")
	assert.Equal(t, []int{2, 4}, []int{report.Results[0].Index, report.Results[1].Index})
}

func TestRun_DuplicateNamesRunIndependently(t *testing.T) {
	reg := registry.New(
		registry.TestCase{Name: "jvm.InvokeTest", Archs: []string{"i386"}},
		registry.TestCase{Name: "jvm.InvokeTest", ExtraArgs: []string{"-Xnosystemclassloader"}, Archs: []string{"i386"}},
	)
	exec := &fakeExecutor{outcomes: map[string][]Outcome{
		"jvm.InvokeTest": {{ExitCode: 0}, {ExitCode: 1}},
	}}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, false).Run(context.Background(), reg, "i386")
	require.NoError(t, err)

	assert.Equal(t, Tally{Passed: 1, Failed: 1}, report.Tally)
	assert.Equal(t, 1, report.ExitCode)
}

func TestRun_LaunchFailureStopsRun(t *testing.T) {
	reg := registry.New(
		registry.TestCase{Name: "A", Archs: []string{"x86_64"}},
		registry.TestCase{Name: "B", Archs: []string{"x86_64"}},
		registry.TestCase{Name: "C", Archs: []string{"x86_64"}},
	)
	exec := &fakeExecutor{
		outcomes: exits(map[string]int{"A": 0}),
		errs:     map[string]error{"B": errors.New("exec: \"./jato\": stat ./jato: no such file or directory")},
	}
	var out bytes.Buffer

	report, err := newTestHarness(exec, &out, false).Run(context.Background(), reg, "x86_64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run B")
	assert.Contains(t, err.Error(), "no such file or directory")

	assert.Equal(t, []string{"A", "B"}, exec.calls)
	require.NotNil(t, report)
	assert.Equal(t, Tally{Passed: 1}, report.Tally)
	assert.NotContains(t, out.String(), "tests passed")
}

func TestRun_TallyMatchesSelection(t *testing.T) {
	reg, err := registry.Default(registry.Vars{TestDir: "regression", Classpath: "/usr"})
	require.NoError(t, err)

	for _, arch := range []string{"i386", "x86_64", "arm64"} {
		t.Run(arch, func(t *testing.T) {
			exec := &fakeExecutor{outcomes: map[string][]Outcome{}}
			var out bytes.Buffer

			report, err := newTestHarness(exec, &out, false).Run(context.Background(), reg, arch)
			require.NoError(t, err)

			selected := 0
			for _, tc := range reg.Cases() {
				if tc.SupportedOn(arch) {
					selected++
				}
			}
			assert.Equal(t, selected, report.Selected)
			assert.Equal(t, selected, report.Tally.Total())
			assert.Len(t, exec.calls, selected)
			assert.Equal(t, 71, report.Total)
		})
	}
}

func TestRun_Golden(t *testing.T) {
	reg := registry.New(
		registry.TestCase{Name: "jvm/EntryTest", ExpectedExitCode: 0, Archs: []string{"i386", "x86_64"}},
		registry.TestCase{Name: "jvm/ExitStatusIsOneTest", ExpectedExitCode: 1, Archs: []string{"i386", "x86_64"}},
		registry.TestCase{Name: "jvm.ArrayTest", ExpectedExitCode: 0, Archs: []string{"i386"}},
		registry.TestCase{Name: "jvm.CloneTest", ExpectedExitCode: 0, Archs: []string{"i386", "x86_64"}},
	)
	exec := &fakeExecutor{outcomes: exits(map[string]int{
		"jvm/EntryTest":           0,
		"jvm/ExitStatusIsOneTest": 1,
		"jvm.CloneTest":           2,
	})}
	var out bytes.Buffer

	_, err := newTestHarness(exec, &out, true).Run(context.Background(), reg, "x86_64")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "run_x86_64", out.Bytes())
}
