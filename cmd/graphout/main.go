package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"graphout/internal/app"
	"graphout/internal/config"
)

const (
	exitCodeFailure = 1
	exitCodeUsage   = 2
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// run starts the adapter process.
// Params: none.
// Returns: process exit code.
func run() int {
	var (
		configPath string
		showInfo   bool
		checkOnly  bool
	)

	flag.StringVar(&configPath, "config", "graphout.toml", "path to TOML config file or directory of *.toml files")
	flag.BoolVar(&showInfo, "v", false, "show build information")
	flag.BoolVar(&showInfo, "version", false, "show build information")
	flag.BoolVar(&checkOnly, "check", false, "validate config and exit")
	flag.Parse()

	if showInfo {
		fmt.Printf("graphout version=%s commit=%s date=%s\n", version, commit, date)
		return 0
	}

	if checkOnly {
		if _, err := config.Load(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
			return exitCodeUsage
		}
		fmt.Printf("config %s is valid\n", configPath)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reload := forwardReloads(ctx)

	if err := app.Run(ctx, app.Runtime{ConfigPath: configPath, Reload: reload}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}

	return 0
}

// forwardReloads turns SIGHUP into reload requests; bursts collapse into one pending request.
// Params: ctx stops forwarding.
// Returns: reload channel for app.Runtime.
func forwardReloads(ctx context.Context) <-chan struct{} {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	reload := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		}
	}()
	return reload
}

func main() {
	os.Exit(run())
}
