package model

// TestRun contains the outcome of walking the registry.
type TestRun struct {
	// Runtime executable that was invoked
	Runtime string `json:"runtime"`
	// Directory passed to -cp
	TestDir string `json:"test_dir"`
	// Registry file, empty for the built-in registry
	Registry string `json:"registry,omitempty"`
	// Number of registered cases
	Total int `json:"total"`
	// Number of cases selected for the architecture
	Selected int `json:"selected"`
	// Number of executed cases that passed
	Passed int `json:"passed"`
	// Number of executed cases that failed
	Failed int `json:"failed"`
	// Whether every executed case passed
	AllPassed bool `json:"all_passed"`
	// Actual exit code of the last executed case
	LastExitCode int `json:"last_exit_code"`
	// Per-case verdicts in execution order
	Cases []CaseResult `json:"cases,omitempty"`
}

// CaseResult is the verdict for one executed case
type CaseResult struct {
	// 1-based position in the registry
	Index int `json:"index"`
	// Qualified entry point name
	Name string `json:"name"`
	// Expected exit code
	Expected int `json:"expected"`
	// Observed exit code (negated signal number if signalled)
	Actual int `json:"actual"`
	// Terminating signal, if any
	Signal string `json:"signal,omitempty"`
	// Whether Actual matched Expected
	Passed bool `json:"passed"`
	// Shell-quoted command line to reproduce the case
	Command string `json:"command,omitempty"`
}
