package harness

import "fmt"

const (
	colorSuccess = "\033[32m"
	colorFailure = "\033[31m"
	colorReset   = "\033[0m"
)

// Tally counts passed and failed cases of a single run.
type Tally struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Record adds one verdict.
func (t *Tally) Record(passed bool) {
	if passed {
		t.Passed++
	} else {
		t.Failed++
	}
}

// Total returns the number of executed cases.
func (t Tally) Total() int {
	return t.Passed + t.Failed
}

// Status returns the summary phrase, e.g. "2 tests passed, 1 test failed".
func (t Tally) Status() string {
	if t.Passed == 0 && t.Failed == 0 {
		return "No tests run"
	}

	var status string
	switch t.Passed {
	case 0:
		status = "No tests passed"
	case 1:
		status = "1 test passed"
	default:
		status = fmt.Sprintf("%d tests passed", t.Passed)
	}

	switch {
	case t.Failed == 1:
		status += ", 1 test failed"
	case t.Failed > 1:
		status += fmt.Sprintf(", %d tests failed", t.Failed)
	}

	return status
}

// ColoredStatus wraps Status in the failure colour if anything failed,
// in the success colour if anything passed, and leaves it plain otherwise.
func (t Tally) ColoredStatus() string {
	status := t.Status()
	switch {
	case t.Failed > 0:
		return colorFailure + status + colorReset
	case t.Passed > 0:
		return colorSuccess + status + colorReset
	}
	return status
}
