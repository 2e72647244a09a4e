// gridswitch switches a grid of smartplugs from MQTT commands.
//
// A command names plugs by grid position (a single plug, a row or a
// column), gets resolved to network addresses through a directory kept in
// etcd or SQLite, and is fanned out to every plug under one deadline. The
// per-plug outcome is published back on the bus.
//
// Usage:
//
//	gridswitch [serve]                       run the dispatcher
//	gridswitch token -subject ops -role operator
//	gridswitch directory list|set|rm ...
//	gridswitch grid
//	gridswitch probe <id>
//	gridswitch version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

const usage = `Usage:
  gridswitch [serve]
  gridswitch token -subject <name> [-role viewer|operator|admin] [-ttl 1h]
  gridswitch directory list|set <id> <address>|rm <id>
  gridswitch grid
  gridswitch probe <id>
  gridswitch version
`

// errUsage marks command line mistakes.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsage(err) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// execute runs the subcommand named by args[0], or the dispatcher when
// there is none.
func execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return run(ctx)
	}

	switch args[0] {
	case "serve":
		return run(ctx)
	case "token":
		return runToken(args[1:], out)
	case "directory":
		return runDirectory(ctx, args[1:], out)
	case "grid":
		return runGrid(ctx, args[1:], out)
	case "probe":
		return runProbe(ctx, args[1:], out)
	case "version":
		fmt.Fprintf(out, "gridswitch %s (commit %s, built %s)\n", version, commit, date)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// getConfigPath returns the configuration file path.
// Uses GRIDSWITCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRIDSWITCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
