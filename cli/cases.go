package cli

// This file contains the cases command for inspecting the registry.

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/jatovm/jato-regress/arch"
	"github.com/jatovm/jato-regress/cli/vm"
	"github.com/jatovm/jato-regress/registry"
)

func (a *App) cases(ctx *cli.Context) error {
	targetArch := ctx.String("arch")
	if targetArch == "" {
		host, err := arch.Host()
		if err != nil {
			return err
		}
		targetArch = host
	}

	// Listing never runs the discovery tool; unknown paths are shown as
	// the placeholder.
	classpath := ctx.String("classpath")
	if classpath == "" {
		classpath = "{classpath}"
	}
	vars := registry.Vars{TestDir: ctx.String("test-dir"), Classpath: classpath}

	var reg *registry.Registry
	var err error
	if path := ctx.String("registry"); path != "" {
		reg, err = registry.LoadFile(path, vars)
	} else {
		reg, err = registry.Default(vars)
	}
	if err != nil {
		return err
	}

	opts := vm.Options{
		Runtime: ctx.String("runtime"),
		TestDir: ctx.String("test-dir"),
	}
	printCases(a.stdout, reg, targetArch, opts, ctx.Bool("commands"))
	return nil
}

func printCases(w io.Writer, reg *registry.Registry, targetArch string, opts vm.Options, commands bool) {
	selected := 0
	for i, tc := range reg.Cases() {
		verdict := "skip"
		if tc.SupportedOn(targetArch) {
			verdict = "run"
			selected++
		}

		fmt.Fprintf(w, "%3d  %-4s  %-52s exit=%-3d [%s]\n", i+1, verdict, tc.Name, tc.ExpectedExitCode, strings.Join(tc.Archs, " "))
		if commands {
			fmt.Fprintf(w, "     %s\n", vm.BuildCommand(opts, tc))
		}
	}

	fmt.Fprintf(w, "\n%d of %d cases selected for %s\n", selected, reg.Len(), targetArch)
}
