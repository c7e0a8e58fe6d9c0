package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"daangn-crawler/config"
	"daangn-crawler/pipeline"
	"daangn-crawler/scraper/daangn"
	"daangn-crawler/services"
	"daangn-crawler/storage"
	"daangn-crawler/utils"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// optionalInt is an int flag that remembers whether it was given.
type optionalInt struct{ v *int }

func (o *optionalInt) String() string {
	if o == nil || o.v == nil {
		return ""
	}
	return strconv.Itoa(*o.v)
}

func (o *optionalInt) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %q", s)
	}
	if n < 0 {
		return fmt.Errorf("must be >= 0, got %d", n)
	}
	o.v = &n
	return nil
}

type cliOptions struct {
	keyword       string
	categories    string
	categoriesSet bool
	noFilter      bool
	minPrice      optionalInt
	maxPrice      optionalInt
	soldOnly      bool
	localPrice    bool
	listOnly      bool
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var o cliOptions
	fs := flag.NewFlagSet("daangn-crawler", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.keyword, "keyword", "", "search keyword (empty lists everything)")
	fs.StringVar(&o.keyword, "k", "", "shorthand for -keyword")
	fs.StringVar(&o.categories, "categories", "", "comma separated categories to keep (empty value disables the filter)")
	fs.StringVar(&o.categories, "c", "", "shorthand for -categories")
	fs.BoolVar(&o.noFilter, "no-filter", false, "collect every category")
	fs.Var(&o.minPrice, "min-price", "minimum price in won")
	fs.Var(&o.maxPrice, "max-price", "maximum price in won")
	fs.BoolVar(&o.soldOnly, "sold-only", false, "keep only completed trades")
	fs.BoolVar(&o.localPrice, "local-price", false, "also enforce the price bounds on the list price text")
	fs.BoolVar(&o.listOnly, "list-only", false, "skip detail pages")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "categories" || f.Name == "c" {
			o.categoriesSet = true
		}
	})
	if o.minPrice.v != nil && o.maxPrice.v != nil && *o.minPrice.v > *o.maxPrice.v {
		return o, fmt.Errorf("-min-price %d is above -max-price %d", *o.minPrice.v, *o.maxPrice.v)
	}
	return o, nil
}

// buildFilter resolves the category flags against the configured sets.
func buildFilter(o cliOptions, cat config.CategoryConfig) (pipeline.CategoryFilter, error) {
	if o.noFilter {
		return pipeline.NewCategoryFilter(nil, false), nil
	}
	if !o.categoriesSet {
		return pipeline.NewCategoryFilter(cat.Default, true), nil
	}

	requested := config.SplitCategories(o.categories)
	if len(requested) == 0 {
		return pipeline.NewCategoryFilter(nil, false), nil
	}
	allowed, err := config.ValidateCategories(requested, cat.Known)
	if err != nil {
		return pipeline.CategoryFilter{}, err
	}
	return pipeline.NewCategoryFilter(allowed, true), nil
}

func buildScreen(o cliOptions, logger *utils.Logger) *services.Screen {
	var minPrice, maxPrice *int
	if o.localPrice {
		minPrice, maxPrice = o.minPrice.v, o.maxPrice.v
	}
	return services.NewScreen(o.soldOnly, minPrice, maxPrice, logger)
}

func run(args []string) int {
	logger := utils.NewLogger()

	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		logger.Error("%v", err)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		return exitUsage
	}
	logger.SetDebug(cfg.LogDebug)

	filter, err := buildFilter(opts, cfg.Category)
	if err != nil {
		logger.Error("%v", err)
		logger.Error("Known categories: %v", cfg.Category.Known)
		return exitUsage
	}

	searchURL, err := daangn.BuildSearchURL(cfg.Crawl.BaseURL, opts.keyword, opts.minPrice.v, opts.maxPrice.v)
	if err != nil {
		logger.Error("%v", err)
		return exitUsage
	}

	logger.Info("=== Daangn crawler starting ===")
	logger.Info("Search URL: %s", searchURL)
	logger.Info("Config: target %d | detail concurrency %d | item timeout %v",
		cfg.Crawl.TargetCount, cfg.Detail.Concurrency, cfg.Detail.Timeout)
	if filter.Enabled() {
		logger.Info("Category filter: %v", filter.Allowed())
	} else {
		logger.Info("Category filter: off")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browser, err := daangn.NewBrowser(cfg, logger)
	if err != nil {
		logger.Error("Could not start the browser: %v", err)
		return exitFailure
	}
	defer browser.Close()

	pipeOpts := pipeline.Options{
		SearchURL:    searchURL,
		TargetCount:  cfg.Crawl.TargetCount,
		PollInterval: cfg.Crawl.PollInterval,
		PollMax:      cfg.Crawl.PollMax,
		Filter:       filter,
		ListOnly:     opts.listOnly,
		Enrich: pipeline.EnrichOptions{
			Concurrency:  cfg.Detail.Concurrency,
			ItemTimeout:  cfg.Detail.Timeout,
			SuccessDelay: cfg.Detail.Delay,
			FailureDelay: cfg.Detail.FailureDelay,
			RateLimit:    cfg.Detail.RateLimit,
		},
	}
	if screen := buildScreen(opts, logger); screen.Active() {
		pipeOpts.Screener = screen
	}

	res, err := pipeline.New(browser, pipeOpts, logger).Run(ctx)
	interrupted := ctx.Err() != nil
	stop()
	if err != nil {
		logger.Error("Crawl failed: %v", err)
		return exitFailure
	}

	// Persist even after an interrupt, on a context of its own
	persistCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	csvPath, err := persist(persistCtx, cfg, res, logger)
	if err != nil {
		logger.Error("Writing results failed: %v", err)
		return exitFailure
	}

	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(res.Records, res.Stats))
	fmt.Printf("  Done. %d records → %s\n\n", len(res.Records), csvPath)

	if interrupted {
		logger.Warn("Run was interrupted; results are partial")
		return exitInterrupted
	}
	return exitOK
}

// persist writes the CSV snapshot and, when configured, the database mirror.
// Only a CSV failure is returned.
func persist(ctx context.Context, cfg config.Config, res *pipeline.Result, logger *utils.Logger) (string, error) {
	path := storage.SnapshotPath(cfg.Output.ResultsDir, res.Stats.StartedAt)
	csvWriter, err := storage.NewCSVWriter(path)
	if err != nil {
		return "", err
	}
	if err := csvWriter.Write(ctx, res.Stats.RunID, res.Records); err != nil {
		_ = csvWriter.Close()
		return "", err
	}
	if err := csvWriter.Close(); err != nil {
		return "", err
	}
	logger.Info("[csv] Saved %d records to %s", len(res.Records), csvWriter.Path())

	mirror, err := openMirror(ctx, cfg, logger)
	if err != nil {
		logger.Warn("[mirror] Skipping %s snapshot: %v", cfg.Output.SnapshotDB, err)
		return path, nil
	}
	if mirror == nil {
		return path, nil
	}
	defer mirror.Close()

	if err := mirror.Write(ctx, res.Stats.RunID, res.Records); err != nil {
		logger.Warn("[mirror] %s snapshot failed: %v", cfg.Output.SnapshotDB, err)
		return path, nil
	}
	if err := storage.VerifySnapshot(ctx, mirror, res.Stats.RunID, len(res.Records)); err != nil {
		logger.Warn("[mirror] %s read-back mismatch: %v", cfg.Output.SnapshotDB, err)
		return path, nil
	}
	logger.Info("[mirror] Stored %d records in %s (table: listing_snapshot)", len(res.Records), cfg.Output.SnapshotDB)
	return path, nil
}

func openMirror(ctx context.Context, cfg config.Config, logger *utils.Logger) (storage.SnapshotMirror, error) {
	switch cfg.Output.SnapshotDB {
	case "postgres":
		return storage.NewPostgresWriter(ctx, cfg.Postgres.DSN(), logger)
	case "sqlite":
		return storage.NewSQLiteWriter(ctx, cfg.Output.SQLitePath)
	default:
		return nil, nil
	}
}
