package cli

// This file contains execution of the runtime under test on a remote
// host over SSH.

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"syscall"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/jatovm/jato-regress/cli/ssh"
	"github.com/jatovm/jato-regress/cli/vm"
	"github.com/jatovm/jato-regress/harness"
	"github.com/jatovm/jato-regress/registry"
)

type remoteRunner interface {
	RunCommandStatus(ctx context.Context, command string, stdout, stderr io.Writer) (int, error)
	Host() string
}

type remoteExecutor struct {
	logger  zerolog.Logger
	client  remoteRunner
	opts    vm.Options
	dir     string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

// remoteTimeoutGrace is how much longer than the per-case timeout the
// local ssh client may run before the run is given up.
const remoteTimeoutGrace = 30 * time.Second

// remoteKilledExitCode is the status timeout(1) exits with after it had to
// send SIGKILL.
const remoteKilledExitCode = 128 + int(syscall.SIGKILL)

// remoteCommand wraps the runtime command so that a missing working
// directory is reported with the ssh transport status instead of looking
// like a test result, and so that the remote shell never execs the
// runtime directly and always exits with its status. A positive timeout
// is enforced on the remote host with timeout(1).
func remoteCommand(dir, command string, timeout time.Duration) string {
	if timeout > 0 {
		secs := strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)
		command = fmt.Sprintf("timeout -s KILL %ss %s", secs, command)
	}
	if dir == "" {
		return fmt.Sprintf("%s; exit $?", command)
	}
	return fmt.Sprintf("cd %s || exit %d; %s; exit $?", shellescape.Quote(dir), ssh.TransportExitCode, command)
}

func (e *remoteExecutor) Execute(ctx context.Context, tc registry.TestCase) (harness.Outcome, error) {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout+remoteTimeoutGrace)
		defer cancel()
	}

	outcome := harness.Outcome{Command: vm.BuildCommand(e.opts, tc)}

	e.logger.Debug().
		Str("host", e.client.Host()).
		Str("dir", e.dir).
		Str("command", outcome.Command).
		Msg("Starting remote runtime")

	code, err := e.client.RunCommandStatus(runCtx, remoteCommand(e.dir, outcome.Command, e.timeout), e.stdout, e.stderr)
	if ctx.Err() != nil {
		return outcome, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	if err != nil {
		// The remote runtime may still be running, so the next case
		// cannot start.
		return outcome, fmt.Errorf("failed to execute %s on %s: %w", e.opts.Runtime, e.client.Host(), err)
	}

	if e.timeout > 0 && code == remoteKilledExitCode {
		e.logger.Warn().
			Str("case", tc.Name).
			Dur("timeout", e.timeout).
			Msg("Case timed out and was killed on the remote host")
		outcome.ExitCode = -int(syscall.SIGKILL)
		outcome.Signal = syscall.SIGKILL.String()
		return outcome, nil
	}

	outcome.ExitCode = code
	return outcome, nil
}
