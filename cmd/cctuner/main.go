package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "cctuner: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "cctuner",
		Usage:     "search compiler flags and --param values for the fastest build of a program",
		ArgsUsage: "<descriptor.json>",
		Flags:     globalFlags(),
		Action:    tuneAction,
		Commands: []*cli.Command{
			{
				Name:      "tune",
				Usage:     "run the search (default)",
				ArgsUsage: "<descriptor.json>",
				Action:    tuneAction,
			},
			{
				Name:      "probe",
				Usage:     "determine which flags and params work and fill the cache",
				ArgsUsage: "<descriptor.json>",
				Action:    probeAction,
			},
			{
				Name:  "histogram",
				Usage: "print how often flags appear in the best configurations of past runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "program", Usage: "only count runs of this program"},
					&cli.IntFlag{Name: "top", Value: 20, Usage: "number of flags to print"},
				},
				Action: histogramAction,
			},
			{
				Name:      "importance",
				Usage:     "measure the impact of each flag of a saved configuration",
				ArgsUsage: "<descriptor.json> <config.json>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "trials", Value: 10, Usage: "runs averaged per measurement"},
					&cli.IntFlag{Name: "top", Value: 20, Usage: "number of flags to print"},
					&cli.StringFlag{Name: "format", Value: "table", Usage: "table, markdown or csv"},
				},
				Action: importanceAction,
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML config file", Sources: cli.EnvVars("CCTUNER_CONFIG")},
		&cli.StringFlag{Name: "env-file", Usage: "dotenv file with transport settings", Value: ".env"},
		&cli.StringFlag{Name: "run-dir", Usage: "build root the descriptor's files are relative to"},
		&cli.StringFlag{Name: "cc", Usage: "compiler to use"},
		&cli.StringFlag{Name: "compile-template", Usage: "command to compile {source} into {output} with {flags}"},
		&cli.StringFlag{Name: "saved-name", Usage: "where to write the best configuration"},
		&cli.FloatFlag{Name: "compile-limit", Usage: "kill the compiler after this many seconds"},
		&cli.FloatFlag{Name: "run-limit", Usage: "kill the program after this many seconds"},
		&cli.IntFlag{Name: "memory-limit", Usage: "memory limit of child processes in KiB"},
		&cli.IntFlag{Name: "scaler", Usage: "by what factor to try increasing parameters"},
		&cli.FloatFlag{Name: "early-time", Usage: "stop the search once a run is faster than this many seconds"},
		&cli.IntFlag{Name: "parallelism", Aliases: []string{"j"}, Usage: "trials measured at once"},
		&cli.IntFlag{Name: "test-limit", Usage: "stop after this many trials"},
		&cli.FloatFlag{Name: "stop-after", Usage: "stop after this many seconds"},
		&cli.IntFlag{Name: "seed", Usage: "seed of the search and of flag minimisation"},
		&cli.BoolFlag{Name: "no-baselines", Usage: "skip measuring -O0..-O3 first"},
		&cli.BoolFlag{Name: "debug", Usage: "on compiler errors find the minimal set of flags that reproduces them"},
		&cli.BoolFlag{Name: "force-killall", Usage: "kill compiler processes before each trial"},
		&cli.BoolFlag{Name: "no-cached-flags", Usage: "probe flags again instead of reading the cache"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print compile and run events"},
		&cli.BoolFlag{Name: "nats", Usage: "publish events to NATS (CCTUNER_NATS_URL)"},
		&cli.BoolFlag{Name: "sqs", Usage: "send results to SQS (CCTUNER_SQS_QUEUE_URL)"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
	}
}
