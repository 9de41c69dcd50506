package arch

// arch.go maps machine names reported by the operating system to the
// architecture identifiers used in the test registry.

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	I386  = "i386"
	X8664 = "x86_64"
)

// Resolve returns the registry identifier for a raw machine string.
// The legacy "i686" name is reported as "i386", every other value is
// returned unchanged.
func Resolve(raw string) string {
	switch raw {
	case "i686":
		return I386
	}
	return raw
}

// Host returns the resolved architecture of the local machine, read from
// the machine field of uname(2).
func Host() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("failed to read host architecture: %w", err)
	}
	return Resolve(unix.ByteSliceToString(uts.Machine[:])), nil
}

// FromUname resolves the output of `uname -m`.
func FromUname(output string) string {
	return Resolve(strings.TrimSpace(output))
}
