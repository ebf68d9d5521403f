package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Reports go to stdout and logs to stderr.
func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:                   "docindex",
		Usage:                  "Incrementally convert PDF, email and DOCX files to text and index their token counts",
		Version:                version,
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory to index",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file (default: <root>/" + config.ConfigFilename + ")",
			},
			&cli.StringFlag{
				Name:  "docx-converter",
				Usage: "DOCX backend: markitdown or superdoc-redlines",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Index store: csv or sqlite",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Workers per stage (default: number of CPUs)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files matching glob patterns relative to the root (e.g., --exclude 'archive/**')",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Hash recorded when a changed file fails to convert: advance or retry",
			},
			&cli.BoolFlag{
				Name:  "keep-unreadable",
				Usage: "Keep index entries for files that cannot be read this run",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Action: func(c *cli.Context) error {
			return indexCommand(c, stdout, stderr)
		},
		Commands: []*cli.Command{
			countCommand(stdout),
			cleanCommand(stdout, stderr),
			ndCommand(stdout, stderr),
			serveCommand(stderr),
			watchCommand(stdout, stderr),
			versionCommand(stdout),
		},
	}
}

// loadConfig loads settings for --root and applies flag overrides
func loadConfig(c *cli.Context) (*config.Config, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", c.String("root"), err)
	}

	cfg, err := config.Load(root, c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("docx-converter") {
		cfg.DocxConverter = c.String("docx-converter")
	}
	if c.IsSet("store") {
		cfg.Store = c.String("store")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if exclude := c.StringSlice("exclude"); len(exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, exclude...)
	}
	if c.IsSet("policy") {
		cfg.Policy = c.String("policy")
	}
	if c.IsSet("keep-unreadable") {
		cfg.KeepUnreadable = c.Bool("keep-unreadable")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config and builds the logger and the shared tokenizer
func setup(c *cli.Context, stderr io.Writer) (*config.Config, *slog.Logger, *tokens.Tiktoken, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cfg.NewLogger(stderr)
	tok, err := tokens.NewTiktoken(cfg.Encoding)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, tok, nil
}

// indexCommand runs the pipeline once and prints the summary
func indexCommand(c *cli.Context, stdout, stderr io.Writer) error {
	cfg, logger, tok, err := setup(c, stderr)
	if err != nil {
		return err
	}
	if err := cfg.WriteBanner(stdout); err != nil {
		return err
	}

	runCfg, err := indexer.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Store, cfg.Root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx := indexer.New(store, tok, logger)
	stats, err := idx.Run(c.Context, runCfg)
	if err != nil {
		return err
	}
	return indexer.WriteSummary(stdout, stats, storage.Location(store))
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(stdout, "docindex\n")
			fmt.Fprintf(stdout, "Version: %s\n", version)
			fmt.Fprintf(stdout, "Build Time: %s\n", buildTime)
			fmt.Fprintf(stdout, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(stdout, "SQLite Driver: %s\n", storage.DriverName)
			return nil
		},
	}
}
