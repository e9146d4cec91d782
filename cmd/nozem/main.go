// Package main is the entry point for the nozem CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/cmd/nozem/commands"
	"go.nozem.dev/nozem/internal/app"
	_ "go.nozem.dev/nozem/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The logger node resolves before cobra ever parses flags, so verbosity
	// is sniffed from the raw arguments up front.
	if wantsVerbose(os.Args[1:]) {
		_ = os.Setenv("NOZEM_LOG_LEVEL", "debug")
	}

	application, _, err := graft.ExecuteFor[*app.App](ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	cli := commands.New(application)
	if err := cli.Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	return 0
}

func wantsVerbose(args []string) bool {
	for _, a := range args {
		if a == "-v" || a == "--verbose" {
			return true
		}
	}
	return false
}
