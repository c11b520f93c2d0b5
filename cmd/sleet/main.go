// sleet is the CLI surface of the core (§6.5): a thin wrapper driving
// the C1-C4 packages exactly as the original bin/demos/* binaries drove
// their Rust counterparts, reworked into one Go entrypoint with
// subcommand dispatch instead of one binary per demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sleetrun/sleet/pkg/runconfig"
	"github.com/sleetrun/sleet/pkg/version"
)

// Exit codes per §6.5.
const (
	exitSuccess       = 0
	exitConfigError   = 1
	exitRuntimeFailure = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "."), "directory containing a .env file")
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.CommandLine.Parse(args)
	remaining := flag.CommandLine.Args()

	if *showVersion {
		fmt.Println(version.Full())
		return exitSuccess
	}

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded, continuing with existing environment", "path", envPath, "error", err)
	}

	if len(remaining) == 0 {
		fmt.Fprintln(os.Stderr, "usage: sleet <ingest|smoke|offload|bitemporal|db-summary|generate|serve> [args]")
		return exitConfigError
	}

	cmd, cmdArgs := remaining[0], remaining[1:]

	// smoke and offload never touch the database, so they don't require
	// runconfig.Load to succeed (a bare interpreter/scheduler self-test
	// should work with no environment configured at all).
	if cmd == "smoke" {
		return runSmoke(cmdArgs)
	}
	if cmd == "offload" {
		return runOffload(cmdArgs)
	}
	if cmd == "generate" {
		return runGenerate(cmdArgs)
	}

	cfg, err := runconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	ctx := context.Background()

	switch cmd {
	case "ingest":
		return runIngest(ctx, cfg, cmdArgs)
	case "bitemporal":
		return runBitemporal(ctx, cfg, cmdArgs)
	case "db-summary":
		return runDBSummary(ctx, cfg, cmdArgs)
	case "serve":
		return runServe(cfg, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", cmd)
		return exitConfigError
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
