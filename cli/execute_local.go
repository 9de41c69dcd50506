package cli

// This file contains local execution of the runtime under test.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jatovm/jato-regress/cli/vm"
	"github.com/jatovm/jato-regress/harness"
	"github.com/jatovm/jato-regress/registry"
)

type localExecutor struct {
	logger  zerolog.Logger
	opts    vm.Options
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

func (e *localExecutor) Execute(ctx context.Context, tc registry.TestCase) (harness.Outcome, error) {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	outcome := harness.Outcome{Command: vm.BuildCommand(e.opts, tc)}

	e.logger.Debug().
		Str("command", outcome.Command).
		Msg("Starting runtime")

	cmd := exec.CommandContext(runCtx, e.opts.Runtime, vm.BuildArgs(e.opts, tc)...)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	code, signal, err := exitStatus(cmd.Run())
	if err != nil {
		return outcome, fmt.Errorf("failed to execute %s: %w", e.opts.Runtime, err)
	}
	if ctx.Err() != nil {
		return outcome, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	if runCtx.Err() != nil {
		e.logger.Warn().
			Str("case", tc.Name).
			Dur("timeout", e.timeout).
			Msg("Case timed out and was killed")
	}

	outcome.ExitCode = code
	outcome.Signal = signal
	return outcome, nil
}

// exitStatus converts the result of running a child into its exit code.
// A child killed by a signal yields the negated signal number. Errors
// other than *exec.ExitError mean the child never ran and are returned.
func exitStatus(err error) (code int, signal string, _ error) {
	if err == nil {
		return 0, "", nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, "", err
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal()), ws.Signal().String(), nil
	}

	return exitErr.ExitCode(), "", nil
}
