package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/moltocasto/podcast-qa/internal/app"
	"github.com/moltocasto/podcast-qa/internal/mcp"
	"github.com/moltocasto/podcast-qa/pkg/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return true
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

func main() {
	// Handle --help/--version before connecting to anything
	if isHelpOrVersion() {
		if err := newCLIApp(&deps{}).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	d := &deps{
		PodcastID:     cfg.DefaultPodcastID,
		Pipeline:      a.Pipeline,
		Transcription: a.Transcription,
		Feeds:         a.Feeds,
		Ask:           a.Ask,
		Questions:     a.Questions,
		Queue:         a.WorkQueue(),
		MCP: mcp.NewServer(mcp.Deps{
			Episodes: a.Store,
			Embedder: a.AI,
			Store:    a.Vectors,
			Ask:      a.Ask,
			Pipeline: a.Pipeline,
			Queue:    a.WorkQueue(),
			Audit:    a.Store,
		}, Version, cfg.MCPPort),
	}

	if err := newCLIApp(d).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		a.Close()
		os.Exit(exitCode(err))
	}
}

// exitCode returns the status carried by a cli exit error, or 1.
func exitCode(err error) int {
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		return coder.ExitCode()
	}
	return 1
}
