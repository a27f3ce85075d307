package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ravi-parthasarathy/ingest/pkg/config"
	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
	"github.com/ravi-parthasarathy/ingest/pkg/source"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the resolved settings from the root command to its children.
type cli struct {
	flags rootFlags
	cfg   config.Config
	app   *app
}

type rootFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	bundleRoot  string
	httpTimeout time.Duration
	maxSize     int64
	concurrency int
	recipes     []string
	metrics     bool
}

func rootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "ingest",
		Short: "ingest: URI-driven load and transform pipelines",
		Long: `ingest loads the bytes behind a URI and runs the action chain chosen by
the URI's file type: images are decoded, archives decompressed, JSON parsed.

Sources: file://, http://, https:// and bundle:// (relative to --bundle-root).
Extra file types can be added with DOT recipe files (--recipe).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.flags.settings(cmd)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return initLogger(cfg.LogLevel, cfg.LogFormat)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&c.flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&c.flags.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&c.flags.bundleRoot, "bundle-root", "", "directory served as bundle:// resources")
	pf.DurationVar(&c.flags.httpTimeout, "http-timeout", 30*time.Second, "timeout for http(s) fetches")
	pf.Int64Var(&c.flags.maxSize, "max-size", 256<<20, "maximum fetched or decompressed size in bytes")
	pf.IntVar(&c.flags.concurrency, "concurrency", 4, "pipelines run in parallel by batch")
	pf.StringSliceVar(&c.flags.recipes, "recipe", nil, "DOT recipe file to register (repeatable)")
	pf.BoolVar(&c.flags.metrics, "metrics", false, "print Prometheus metrics to stderr after running")

	root.AddCommand(runCmd(c))
	root.AddCommand(batchCmd(c))
	root.AddCommand(classifyCmd(c))
	root.AddCommand(lintCmd(c))
	root.AddCommand(graphCmd(c))
	return root
}

// settings resolves config with precedence flag > env > file > default.
func (f *rootFlags) settings(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("bundle-root") {
		cfg.BundleRoot = f.bundleRoot
	}
	if flags.Changed("http-timeout") {
		cfg.HTTPTimeout = config.Duration(f.httpTimeout)
	}
	if flags.Changed("max-size") {
		cfg.MaxSize = f.maxSize
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if flags.Changed("recipe") {
		cfg.Recipes = append(cfg.Recipes, f.recipes...)
	}
	if flags.Changed("metrics") {
		cfg.Metrics = f.metrics
	}
	return cfg, cfg.Validate()
}

// application builds the app on first use.
func (c *cli) application() (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := newApp(c.cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd(c *cli) *cobra.Command {
	var (
		reset  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "run <uri>",
		Short: "Load a URI and run its pipeline once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			defer a.dumpMetrics(os.Stderr)

			ctx := signalContext(cmd.Context())
			p, err := a.execute(ctx, args[0], reset)
			if err != nil {
				return err
			}
			if err := writeOutputResult(output, describe(p)); err != nil {
				return err
			}
			if p.State() != pipeline.StateCompleted {
				return fmt.Errorf("pipeline %q failed: %w", p.URI(), p.Err())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s -> %s (%s)\n", p.URI(), p.Result().Kind, p.Recipe().Name())
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "discard the carried result before executing")
	cmd.Flags().StringVar(&output, "output", "", "path to write the result summary as JSON (optional)")
	return cmd
}

// ─── batch ────────────────────────────────────────────────────────────────────

func batchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <uri>...",
		Short: "Run the pipelines of several URIs in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			defer a.dumpMetrics(os.Stderr)

			lines, err := a.batch(signalContext(cmd.Context()), args, c.cfg.Concurrency)
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return err
		},
	}
	return cmd
}

// batch runs every URI with at most limit pipelines in flight. It returns one
// summary line per URI, in argument order, and the joined failures.
func (a *app) batch(ctx context.Context, uris []string, limit int) ([]string, error) {
	lines := make([]string, len(uris))
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, uri := range uris {
		g.Go(func() error {
			p, err := a.execute(gctx, uri, false)
			if err != nil {
				lines[i] = fmt.Sprintf("FAIL %s: %v", uri, err)
				record(err)
				return nil
			}
			if p.State() != pipeline.StateCompleted {
				lines[i] = fmt.Sprintf("FAIL %s: %v", uri, p.Err())
				record(fmt.Errorf("pipeline %q failed: %w", uri, p.Err()))
				return nil
			}
			lines[i] = fmt.Sprintf("OK   %s -> %s", uri, p.Result().Kind)
			return nil
		})
	}
	_ = g.Wait()
	return lines, errors.Join(errs...)
}

// ─── classify ─────────────────────────────────────────────────────────────────

func classifyCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <uri>",
		Short: "Show the recipe and source kind a URI resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			uri := args[0]
			r, err := a.recipes.Classify(uri)
			if err != nil {
				return err
			}
			chain := []string{pipeline.LoadKind}
			for _, e := range pipeline.Chain(r) {
				chain = append(chain, e.To)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: recipe=%s source=%s chain=%s\n",
				uri, r.Name(), source.Classify(uri), strings.Join(chain, ","))
			return nil
		},
	}
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <recipe.dot>...",
		Short: "Validate recipe DOT files without registering them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				g, err := lintRecipeFile(path)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK: recipe %q is valid (%d actions, %d rules, suffixes %s)\n",
					g.Name, len(g.Kinds()), len(g.Edges), strings.Join(g.Suffixes, " "))
			}
			return errors.Join(errs...)
		},
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// initLogger installs the default slog logger on stderr.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[ingest] interrupted, cancelling pipeline")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
