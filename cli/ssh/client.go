package ssh

// Package ssh provides SSH multiplexing and remote command execution
// for running the runtime under test on another machine. It manages a
// persistent master connection and runs commands through it.

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jatovm/jato-regress/arch"
)

// TransportExitCode is the status the ssh client exits with when the
// connection itself fails.
const TransportExitCode = 255

// Client manages an SSH connection to a specific remote host.
type Client struct {
	logger       zerolog.Logger
	host         string
	controlPath  string
	identityFile string
	extraOptions []string
}

// SSHOption is a function that configures an SSH client.
type SSHOption func(*Client)

// WithIdentityFile sets the identity file (private key) to use for authentication.
func WithIdentityFile(path string) SSHOption {
	return func(c *Client) {
		c.identityFile = path
	}
}

// WithExtraOptions adds extra SSH options to the connection.
func WithExtraOptions(options ...string) SSHOption {
	return func(c *Client) {
		c.extraOptions = append(c.extraOptions, options...)
	}
}

// New creates a new SSH client and establishes a multiplexed connection to the host.
func New(logger zerolog.Logger, host string, opts ...SSHOption) (*Client, error) {
	c := &Client{
		logger: logger,
		host:   host,
	}

	for _, opt := range opts {
		opt(c)
	}

	controlPath, err := c.setupMultiplexing()
	if err != nil {
		return nil, fmt.Errorf("failed to setup SSH multiplexing: %w", err)
	}
	c.controlPath = controlPath

	return c, nil
}

// Close closes the SSH connection and cleans up the control socket.
func (c *Client) Close() {
	c.logger.Debug().Str("controlPath", c.controlPath).Msg("Cleaning up SSH multiplexing")

	// Close the master connection
	args := []string{
		"-o", fmt.Sprintf("ControlPath=%s", c.controlPath),
		"-O", "exit",
		c.host,
	}
	cmd := exec.Command("ssh", args...)
	_ = cmd.Run() // Ignore errors on cleanup

	// Remove the control socket file if it still exists
	_ = os.Remove(c.controlPath)
}

// RunCommand executes a command on the remote host and returns its output.
func (c *Client) RunCommand(command string) (string, error) {
	args := c.buildSSHArgs()
	args = append(args, c.host, command)

	cmd := exec.Command("ssh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug().
		Str("host", c.host).
		Str("command", command).
		Msg("Running remote command")

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command failed: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.String(), nil
}

// RunCommandStatus executes a command on the remote host, streaming its
// output, and returns the remote exit status. Exit status 255 is the ssh
// client's own failure and is returned as an error, as is a client killed
// through ctx.
func (c *Client) RunCommandStatus(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	args := c.buildSSHArgs()
	args = append(args, c.host, command)

	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	c.logger.Debug().
		Str("host", c.host).
		Str("command", command).
		Msg("Running remote command")

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("failed to start ssh: %w", err)
	}
	if ctx.Err() != nil {
		// Only the local client was killed; the remote command may live on.
		return 0, fmt.Errorf("ssh to %s was killed: %w", c.host, ctx.Err())
	}
	if exitErr.ExitCode() == TransportExitCode {
		return 0, fmt.Errorf("ssh to %s failed with exit code %d", c.host, TransportExitCode)
	}

	return exitErr.ExitCode(), nil
}

// buildSSHArgs constructs the SSH arguments with all configured options.
func (c *Client) buildSSHArgs() []string {
	args := []string{}

	// Add control path options if using multiplexing
	if c.controlPath != "" {
		args = append(args,
			"-o", fmt.Sprintf("ControlPath=%s", c.controlPath),
			"-o", "ControlMaster=no",
		)
	}

	if c.identityFile != "" {
		args = append(args, "-i", c.identityFile)
	}

	for _, opt := range c.extraOptions {
		args = append(args, "-o", opt)
	}

	return args
}

// DetectArch returns the resolved architecture of the remote machine.
func (c *Client) DetectArch() (string, error) {
	output, err := c.RunCommand("uname -m")
	if err != nil {
		return "", fmt.Errorf("failed to detect architecture: %w", err)
	}
	return arch.FromUname(output), nil
}

// Host returns the remote host this client is connected to.
func (c *Client) Host() string {
	return c.host
}

// setupMultiplexing establishes an SSH master connection for multiplexing.
func (c *Client) setupMultiplexing() (string, error) {
	controlDir := c.getControlSocketDir()

	if err := os.MkdirAll(controlDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create control directory: %w", err)
	}

	// Unix domain socket paths are limited to 104-108 bytes, so the host
	// is hashed instead of used verbatim.
	hash := sha256.Sum256([]byte(c.host))
	hostHash := hex.EncodeToString(hash[:])[:12]

	controlPath := filepath.Join(controlDir, fmt.Sprintf("ssh-%s", hostHash))

	c.logger.Debug().
		Str("host", c.host).
		Str("controlPath", controlPath).
		Int("pathLength", len(controlPath)).
		Msg("Setting up SSH multiplexing")

	args := []string{
		"-o", "ControlMaster=auto",
		"-o", fmt.Sprintf("ControlPath=%s", controlPath),
		"-o", "ControlPersist=30s",
		"-o", "ConnectTimeout=10",
		"-o", "ServerAliveInterval=15",
		"-o", "ServerAliveCountMax=3",
	}

	if c.identityFile != "" {
		args = append(args, "-i", c.identityFile)
	}

	for _, opt := range c.extraOptions {
		args = append(args, "-o", opt)
	}

	args = append(args,
		"-f", // Run in background
		"-N", // Don't execute a remote command
		c.host,
	)

	cmd := exec.Command("ssh", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to establish SSH master connection: %w (stderr: %s)", err, stderr.String())
	}

	c.logger.Debug().Str("host", c.host).Msg("SSH master connection established")
	return controlPath, nil
}

// getControlSocketDir returns the directory to use for SSH control sockets.
func (c *Client) getControlSocketDir() string {
	// Keep the path short, XDG_RUNTIME_DIR is preferred for sockets
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, "jato-regress")
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home := os.Getenv("HOME"); home != "" {
			configHome = filepath.Join(home, ".config")
		}
	}

	if configHome != "" {
		return filepath.Join(configHome, "jato-regress")
	}

	return filepath.Join(os.TempDir(), "jato-regress")
}
