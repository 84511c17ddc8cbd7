// linecast accepts TCP clients and broadcasts every line typed on stdin,
// posted to the operator console or published on a NATS subject to all of
// them.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML configuration file"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "TCP port clients connect to"},
		&cli.StringFlag{Name: "bind", Usage: "interface address for the client port (default: all)"},
		&cli.StringFlag{Name: "console", Usage: "operator console listen address, empty to disable"},
		&cli.BoolFlag{Name: "metrics", Usage: "serve Prometheus metrics on the console"},
		&cli.StringFlag{Name: "nats-url", Usage: "NATS server to relay messages from"},
		&cli.StringFlag{Name: "nats-subject", Usage: "NATS subject to relay"},
		&cli.DurationFlag{Name: "poll-interval", Usage: "heartbeat period when idle"},
		&cli.DurationFlag{Name: "write-timeout", Usage: "deadline for a single client write"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.DurationFlag{Name: "shutdown-timeout", Value: 5 * time.Second, Usage: "how long to wait for a clean shutdown"},
	}
}

func main() {
	app := &cli.App{
		Name:  "linecast",
		Usage: "broadcast text lines to every connected TCP client",
		Flags:  flags(),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "linecast: %v\n", err)
		os.Exit(1)
	}
}
