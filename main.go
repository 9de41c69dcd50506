package main

import (
	"errors"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	jatocli "github.com/jatovm/jato-regress/cli"
)

// Version information, set by goreleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	c := jatocli.New()
	c.SetVersion(version, commit, date)
	err := c.Run(os.Args)
	if err != nil {
		// The run command reports the last case's exit status this way
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		log.Fatal(err)
	}
}
