package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/jatovm/jato-regress/cli/vm"
)

const AppName = "jato-regress"

type App struct {
	logger zerolog.Logger
	stdout io.Writer
	cli    *cli.App
}

func registryFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "registry",
		Aliases: []string{"r"},
		Usage:   "YAML file replacing the built-in case registry",
		EnvVars: []string{"JATO_REGISTRY"},
	}
}

func archFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "arch",
		Usage:   "Architecture used for case selection (default: detected from the target machine)",
		EnvVars: []string{"JATO_ARCH"},
	}
}

func remoteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "remote-host",
			Usage:   "SSH host to run the runtime on (architecture is detected there)",
			EnvVars: []string{"JATO_REMOTE_HOST"},
		},
		&cli.StringFlag{
			Name:    "remote-dir",
			Usage:   "Directory on the remote host to run the runtime from",
			EnvVars: []string{"JATO_REMOTE_DIR"},
		},
		&cli.StringFlag{
			Name:  "ssh-identity",
			Usage: "Private key used for the SSH connection",
		},
		&cli.StringSliceFlag{
			Name:  "ssh-option",
			Usage: "Extra ssh -o option (can be specified multiple times)",
		},
	}
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		stdout: os.Stdout,
		cli: &cli.App{
			Name:           AppName,
			Usage:          "Run the regression suite against the runtime",
			DefaultCommand: "run",
			// main turns cli.Exit errors into the process status
			ExitErrHandler: func(*cli.Context, error) {},
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}

	runFlags := []cli.Flag{
		vm.RuntimeFlag(),
		vm.TestDirFlag(),
		vm.ClasspathFlag(),
		vm.ClasspathConfigFlag(),
		registryFlag(),
		archFlag(),
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Kill a case that runs longer than this (0 waits forever)",
			EnvVars: []string{"JATO_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "color",
			Usage:   "Colour the summary: always, auto or never",
			Value:   colorAlways,
			EnvVars: []string{"JATO_COLOR"},
		},
		&cli.BoolFlag{
			Name:    "strict-exit",
			Usage:   "Exit 0 when every selected case passed and 1 otherwise, instead of the last case's exit code",
			EnvVars: []string{"JATO_STRICT_EXIT"},
		},
		&cli.BoolFlag{
			Name:  "record",
			Usage: "Record the run and the runtime output in the history directory",
		},
	}
	runFlags = append(runFlags, remoteFlags()...)

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Run every case supported on the target architecture",
		Action: app.run,
		Flags:  runFlags,
		Description: `Runs the registry in order, one runtime process at a time:

  <runtime> -cp <test-dir> [extra args...] <case>

A case passes when the runtime exits with the expected code. The process
exits with the exit code of the last case that ran (0 if none ran), unless
--strict-exit is given.`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "cases",
		Usage:  "List registered cases and whether they run on the target architecture",
		Action: app.cases,
		Flags: []cli.Flag{
			vm.RuntimeFlag(),
			vm.TestDirFlag(),
			vm.ClasspathFlag(),
			registryFlag(),
			archFlag(),
			&cli.BoolFlag{
				Name:  "commands",
				Usage: "Print the full command line of each case",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List recorded runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Only show runs with failed cases",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View a recorded run",
		ArgsUsage:       "[ID|INDEX] [--output]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View a recorded run.

Arguments:
  0           View last run (default)
  -1          View 2nd last run
  <hex-id>    View run matching the hex ID prefix
  --output    Also print the captured runtime output

Examples:
  jato-regress view              # View last run
  jato-regress view -1           # View 2nd last run
  jato-regress view abc123 -o    # View run abc123 with output`,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
