package vm

// command.go contains utilities for building runtime command lines.

import (
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/urfave/cli/v2"

	"github.com/jatovm/jato-regress/registry"
)

const (
	DefaultRuntime = "./jato"
	DefaultTestDir = "regression"
)

// Options describes how the runtime under test is invoked.
type Options struct {
	Runtime string // Runtime executable
	TestDir string // Directory passed to -cp
}

// BuildArgs builds the runtime arguments for a case:
// -cp <test-dir> [extra args...] <name>.
func BuildArgs(opts Options, tc registry.TestCase) []string {
	args := make([]string, 0, len(tc.ExtraArgs)+3)
	args = append(args, "-cp", opts.TestDir)
	args = append(args, tc.ExtraArgs...)
	args = append(args, tc.Name)
	return args
}

// BuildCommand builds the full command string for a case with proper
// shell escaping, suitable for remote execution or copy and paste.
func BuildCommand(opts Options, tc registry.TestCase) string {
	args := BuildArgs(opts, tc)

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellescape.Quote(opts.Runtime))

	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}

	return strings.Join(parts, " ")
}

// RuntimeFlag returns the flag selecting the runtime executable.
func RuntimeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "runtime",
		Usage:   "Runtime executable under test",
		Value:   DefaultRuntime,
		EnvVars: []string{"JATO_RUNTIME"},
	}
}

// TestDirFlag returns the flag selecting the test classpath directory.
func TestDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "test-dir",
		Usage:   "Directory holding the compiled regression classes (passed to -cp)",
		Value:   DefaultTestDir,
		EnvVars: []string{"JATO_TEST_DIR"},
	}
}

// ClasspathFlag returns the flag overriding classpath discovery.
func ClasspathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "classpath",
		Usage:   "GNU Classpath install prefix (skips running --classpath-config)",
		EnvVars: []string{"JATO_CLASSPATH"},
	}
}

// ClasspathConfigFlag returns the flag naming the classpath discovery tool.
func ClasspathConfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "classpath-config",
		Usage:   "Tool printing the GNU Classpath install prefix",
		Value:   DefaultClasspathConfig,
		EnvVars: []string{"JATO_CLASSPATH_CONFIG"},
	}
}
