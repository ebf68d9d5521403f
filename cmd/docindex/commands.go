package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dshills/docindex/internal/cleaner"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/mcp"
	"github.com/dshills/docindex/internal/netdocs"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
)

func countCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "count",
		Usage:     "Count tokens in a file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "encoding",
				Aliases: []string{"e"},
				Usage:   "Tokenizer encoding (cl100k_base, p50k_base, r50k_base, o200k_base)",
				Value:   tokens.DefaultEncoding,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show additional stats",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("count requires exactly one FILE argument")
			}
			path := c.Args().First()

			tok, err := tokens.NewTiktoken(c.String("encoding"))
			if err != nil {
				return err
			}
			text, err := tokens.ReadText(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			stats := tokens.Analyze(tok, text)

			if !c.Bool("verbose") {
				fmt.Fprintln(stdout, stats.Tokens)
				return nil
			}
			p := message.NewPrinter(language.English)
			p.Fprintf(stdout, "File: %s\n", path)
			p.Fprintf(stdout, "Encoding: %s\n", stats.Encoding)
			p.Fprintf(stdout, "Tokens: %d\n", stats.Tokens)
			p.Fprintf(stdout, "Characters: %d\n", stats.Characters)
			p.Fprintf(stdout, "Words: %d\n", stats.Words)
			p.Fprintf(stdout, "Lines: %d\n", stats.Lines)
			if stats.Tokens > 0 {
				fmt.Fprintf(stdout, "Chars/token: %.2f\n", stats.CharsPerToken())
			} else {
				fmt.Fprintln(stdout, "Chars/token: N/A")
			}
			return nil
		},
	}
}

func cleanCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Remove PDF artifacts from a converted file via the cleaning service",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-tokens-per-chunk",
				Usage: "Max tokens per chunk for backend processing",
				Value: cleaner.DefaultMaxTokensPerChunk,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path (default: input name with _cleaned suffix)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("clean requires exactly one FILE argument")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			client, err := cleaner.NewClient(cleaner.Options{URL: cfg.ArtifactURL, Token: cfg.ArtifactAPIToken})
			if err != nil {
				return fmt.Errorf("%w: set ARTIFACT_URL and ARTIFACT_API_TOKEN", err)
			}

			input := c.Args().First()
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input not found: %s", input)
			}
			out, err := client.CleanFile(c.Context, input, c.String("output"), c.Int("max-tokens-per-chunk"))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote cleaned file: %s\n", out)
			return nil
		},
	}
}

func ndCommand(stdout, stderr io.Writer) *cli.Command {
	client := func(c *cli.Context) (*netdocs.Client, error) {
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		nd, err := netdocs.NewClient(cfg.NDHelperURL, cfg.NDAPIKey, cfg.DownloadDir, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: set NDHELPER_URL and ND_API_KEY", err)
		}
		return nd, nil
	}

	return &cli.Command{
		Name:  "nd",
		Usage: "Browse, download and search NetDocuments",
		Subcommands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List files in a folder",
				ArgsUsage: "DOC_ID",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("ls requires a DOC_ID")
					}
					nd, err := client(c)
					if err != nil {
						return err
					}
					entries, err := nd.Ls(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					for _, e := range entries {
						fmt.Fprintln(stdout, e.String())
					}
					return nil
				},
			},
			{
				Name:      "dl",
				Usage:     "Download a document",
				ArgsUsage: "DOC_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "version", Usage: "Version to download", Value: 1},
					&cli.StringFlag{Name: "name", Usage: "Output filename (default: <DOC_ID>.download)"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("dl requires a DOC_ID")
					}
					nd, err := client(c)
					if err != nil {
						return err
					}
					name := c.String("name")
					if name == "" {
						fmt.Fprintf(stderr, "Note: No --name provided, saving as %s.download\n", c.Args().First())
					}
					path, err := nd.Download(c.Context, c.Args().First(), c.Int("version"), name)
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout, "Downloaded: %s\n", path)
					return nil
				},
			},
			{
				Name:      "search",
				Usage:     "Search matters by name, or look up labels with --id",
				ArgsUsage: "TERM",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "id", Usage: "Matter IDs to label instead of searching"},
				},
				Action: func(c *cli.Context) error {
					ids := c.StringSlice("id")
					if len(ids) == 0 && c.NArg() != 1 {
						return errors.New("search requires a TERM or --id")
					}
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					matters, err := netdocs.OpenMatters(cfg.MattersDB)
					if err != nil {
						return fmt.Errorf("%w: set MATTERS_DB", err)
					}
					defer func() { _ = matters.Close() }()

					var found []netdocs.Matter
					if len(ids) > 0 {
						found, err = matters.Labels(c.Context, ids)
					} else {
						found, err = matters.Search(c.Context, c.Args().First())
					}
					if err != nil {
						return err
					}
					if len(found) == 0 {
						fmt.Fprintln(stdout, "No matters found.")
						return nil
					}
					for _, m := range found {
						fmt.Fprintf(stdout, "%s  %s\n", m.ID, m.Label)
					}
					return nil
				},
			},
		},
	}
}

func serveCommand(stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			cfg, logger, tok, err := setup(c, stderr)
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(mcp.Options{Config: cfg, Tokenizer: tok, Logger: logger})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			logger.Info("MCP server ready, listening on stdio", "version", version, "store", cfg.Store)
			return srv.Serve(c.Context)
		},
	}
}

func watchCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Index, then re-index whenever documents under the root change",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a run starts",
			},
		},
		Action: func(c *cli.Context) error {
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

			debounce := cfg.WatchDebounce
			if c.IsSet("debounce") {
				debounce = c.Duration("debounce")
			}

			location := storage.Location(store)
			w := indexer.NewWatcher(indexer.New(store, tok, logger), runCfg, indexer.WatchOptions{
				Debounce: debounce,
				Logger:   logger,
				OnRun: func(stats *indexer.Statistics, err error) {
					if err == nil {
						_ = indexer.WriteSummary(stdout, stats, location)
					}
				},
			})
			logger.Info("watching for changes", "root", cfg.Root, "debounce", debounce)
			return w.Run(c.Context)
		},
	}
}
