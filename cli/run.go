package cli

// This file contains the run command which walks the registry against
// the runtime and records the outcome.

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/jatovm/jato-regress/arch"
	"github.com/jatovm/jato-regress/cli/ssh"
	"github.com/jatovm/jato-regress/cli/vm"
	"github.com/jatovm/jato-regress/harness"
	"github.com/jatovm/jato-regress/model"
	"github.com/jatovm/jato-regress/registry"
)

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

// useColor decides whether the summary is coloured for mode. In auto
// mode only a terminal gets colour.
func useColor(mode string, out io.Writer) (bool, error) {
	switch mode {
	case colorAlways:
		return true, nil
	case colorNever:
		return false, nil
	case colorAuto:
		f, ok := out.(*os.File)
		if !ok {
			return false, nil
		}
		fd := f.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
	}
	return false, fmt.Errorf("invalid --color %q: must be %s, %s or %s", mode, colorAlways, colorAuto, colorNever)
}

// exitCode is the harness process status for report. By default it is the
// raw exit code of the last executed case.
func exitCode(report *harness.Report, strict bool) int {
	if !strict {
		return report.ExitCode
	}
	if report.AllPassed() {
		return 0
	}
	return 1
}

// loadRegistry reads the registry YAML from path, or the built-in one when
// path is empty, and runs classpath discovery only if the registry needs it.
func (a *App) loadRegistry(ctx *cli.Context, path string) (*registry.Registry, []byte, error) {
	source := registry.DefaultSource()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read registry file: %w", err)
		}
		source = data
	}

	vars := registry.Vars{TestDir: ctx.String("test-dir")}
	if registry.UsesClasspath(source) {
		vars.Classpath = ctx.String("classpath")
		if vars.Classpath == "" {
			vars.Classpath = a.discoverClasspath(ctx.String("classpath-config"))
		}
		a.logger.Debug().Str("classpath", vars.Classpath).Msg("Using classpath")
	}

	reg, err := registry.Load(source, vars)
	if err != nil {
		return nil, nil, err
	}
	return reg, source, nil
}

// discoverClasspath runs the classpath tool. A missing or failing tool
// leaves the prefix empty and the run goes on; only the cases that need
// the class library will fail.
func (a *App) discoverClasspath(tool string) string {
	if tool == "" {
		tool = vm.DefaultClasspathConfig
	}
	classpath, err := vm.Classpath(tool)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Classpath discovery failed, continuing with an empty classpath")
		return ""
	}
	return classpath
}

func newRunID() (string, error) {
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", fmt.Errorf("failed to generate run ID: %w", err)
	}
	return hex.EncodeToString(idBytes), nil
}

func (a *App) run(ctx *cli.Context) error {
	startTime := time.Now()

	color, err := useColor(ctx.String("color"), a.stdout)
	if err != nil {
		return err
	}

	registryPath := ctx.String("registry")
	reg, registrySource, err := a.loadRegistry(ctx, registryPath)
	if err != nil {
		return err
	}

	opts := vm.Options{
		Runtime: ctx.String("runtime"),
		TestDir: ctx.String("test-dir"),
	}
	timeout := ctx.Duration("timeout")
	record := ctx.Bool("record")

	// Runtime output goes to the terminal and, when recording, to buffers
	var stdoutBuf, stderrBuf bytes.Buffer
	var childStdout, childStderr io.Writer = a.stdout, os.Stderr
	if record {
		childStdout = io.MultiWriter(a.stdout, &stdoutBuf)
		childStderr = io.MultiWriter(os.Stderr, &stderrBuf)
	}

	target := &model.Target{OS: runtime.GOOS}
	var executor harness.Executor
	targetArch := ctx.String("arch")

	if remoteHost := ctx.String("remote-host"); remoteHost != "" {
		a.logger.Info().Str("host", remoteHost).Msg("Connecting to remote host")

		var sshOpts []ssh.SSHOption
		if identity := ctx.String("ssh-identity"); identity != "" {
			sshOpts = append(sshOpts, ssh.WithIdentityFile(identity))
		}
		if options := ctx.StringSlice("ssh-option"); len(options) > 0 {
			sshOpts = append(sshOpts, ssh.WithExtraOptions(options...))
		}

		sshClient, err := ssh.New(a.logger, remoteHost, sshOpts...)
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to setup SSH connection")
			return err
		}
		defer sshClient.Close()

		if targetArch == "" {
			targetArch, err = sshClient.DetectArch()
			if err != nil {
				return err
			}
		}

		target.OS = ""
		target.RemoteHost = remoteHost
		executor = &remoteExecutor{
			logger:  a.logger,
			client:  sshClient,
			opts:    opts,
			dir:     ctx.String("remote-dir"),
			timeout: timeout,
			stdout:  childStdout,
			stderr:  childStderr,
		}
	} else {
		if targetArch == "" {
			targetArch, err = arch.Host()
			if err != nil {
				return err
			}
		}
		executor = &localExecutor{
			logger:  a.logger,
			opts:    opts,
			timeout: timeout,
			stdout:  childStdout,
			stderr:  childStderr,
		}
	}
	target.Arch = targetArch

	a.logger.Debug().
		Str("runtime", opts.Runtime).
		Str("test_dir", opts.TestDir).
		Str("registry", registryPath).
		Dur("timeout", timeout).
		Msg("Harness configuration")

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := harness.New(a.logger, executor,
		harness.WithOutput(a.stdout),
		harness.WithColor(color),
	)
	report, runErr := h.Run(runCtx, reg, targetArch)

	code := exitCode(report, ctx.Bool("strict-exit"))

	if record {
		rec := runRecord{
			start:          startTime,
			exitCode:       code,
			target:         target,
			registryPath:   registryPath,
			registrySource: registrySource,
			opts:           opts,
			report:         report,
			err:            runErr,
			stdout:         stdoutBuf.Bytes(),
			stderr:         stderrBuf.Bytes(),
		}
		if err := a.record(rec); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to record history")
		}
	}

	if runErr != nil {
		return runErr
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// runRecord is everything a finished run contributes to its history entry.
type runRecord struct {
	start          time.Time
	exitCode       int
	target         *model.Target
	registryPath   string
	registrySource []byte
	opts           vm.Options
	report         *harness.Report
	err            error
	stdout         []byte
	stderr         []byte
}

func (a *App) record(rec runRecord) error {
	runID, err := newRunID()
	if err != nil {
		return err
	}

	h := &model.History{
		ID:        runID,
		Timestamp: rec.start,
		Args:      os.Args,
		ExitCode:  rec.exitCode,
		Duration:  time.Since(rec.start),
		Git:       a.gitInfo(),
		Target:    rec.target,
	}
	if cwd, err := os.Getwd(); err == nil {
		h.WorkDir = cwd
	}
	if rec.report != nil {
		h.Run = testRunFromReport(rec.report)
		h.Run.Runtime = rec.opts.Runtime
		h.Run.TestDir = rec.opts.TestDir
		h.Run.Registry = rec.registryPath
	}
	if rec.err != nil {
		h.Error = rec.err.Error()
	}

	runDir, err := a.prepareHistoryDir(h)
	if err != nil {
		return fmt.Errorf("failed to prepare history directory: %w", err)
	}

	registrySource := rec.registrySource
	if rec.registryPath == "" {
		// The built-in registry is implied by the binary version.
		registrySource = nil
	}
	if err := a.recordHistory(h, runDir, rec.stdout, rec.stderr, registrySource); err != nil {
		return err
	}

	a.logger.Info().Str("id", runID[:8]).Str("dir", runDir).Msg("Run recorded")
	return nil
}
