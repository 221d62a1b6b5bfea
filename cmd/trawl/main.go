package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct{}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("trawl"),
		kong.Description("Distributed web crawler and full-text search engine"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	// Handle no arguments
	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no arguments provided")
	}

	// Handle help flags
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h" || args[0] == "help") {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, cli.Config, stdout, stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	return kctx.Run(app)
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config string `short:"c" help:"Path to the YAML config file" type:"path"`

	Serve     ServeCmd     `cmd:"" help:"Run the search and admin API server."`
	Scheduler SchedulerCmd `cmd:"" help:"Run the frontier scheduler."`
	Worker    WorkerCmd    `cmd:"" help:"Run pipeline workers (fetch, discover or index)."`
	PageRank  PageRankCmd  `cmd:"" name:"pagerank" help:"Recompute PageRank scores over the link graph."`
	Seed      SeedCmd      `cmd:"" help:"Admit seed URLs into the frontier."`
	Stats     StatsCmd     `cmd:"" help:"Print crawl and index statistics."`
}
