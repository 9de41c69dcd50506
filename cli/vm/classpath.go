package vm

// classpath.go runs the companion tool that locates the class library.

import (
	"fmt"
	"os/exec"
	"strings"
)

const DefaultClasspathConfig = "tools/classpath-config"

// Classpath runs tool and returns its trimmed standard output, the install
// prefix of the class library.
func Classpath(tool string) (string, error) {
	cmd := exec.Command(tool)

	// Capture stdout and stderr separately
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())

		// Show the first line of the tool's error output
		lines := strings.Split(errMsg, "\n")
		if len(lines) > 0 && lines[0] != "" {
			return "", fmt.Errorf("failed to run %s: %s", tool, lines[0])
		}

		return "", fmt.Errorf("failed to run %s: %w", tool, err)
	}

	classpath := strings.TrimSpace(stdout.String())
	if classpath == "" {
		return "", fmt.Errorf("%s printed no classpath", tool)
	}

	return classpath, nil
}
