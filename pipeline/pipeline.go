package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

// Screener drops summaries on list-level criteria other than category.
type Screener interface {
	Screen(summaries []models.ListingSummary) (kept []models.ListingSummary, dropped int)
}

// Options is the immutable description of one run.
type Options struct {
	SearchURL    string
	TargetCount  int
	PollInterval time.Duration
	PollMax      time.Duration

	Filter   CategoryFilter
	Screener Screener // optional
	ListOnly bool     // skip the detail stage

	Enrich EnrichOptions
}

// Result is the finalized output of a run.
type Result struct {
	Records []models.MergedRecord
	Stats   models.RunStats
}

// Pipeline wires the stages together over a Surface.
type Pipeline struct {
	surface Surface
	opts    Options
	logger  *utils.Logger
}

// New creates a Pipeline.
func New(surface Surface, opts Options, logger *utils.Logger) *Pipeline {
	return &Pipeline{surface: surface, opts: opts, logger: logger}
}

// Run executes one crawl. Per-item problems are absorbed into the stats; an
// error is returned only when the list page cannot be opened or read. If ctx
// is cancelled part way, Run still returns the records finalized from what
// was collected before the interruption.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	stats := models.RunStats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	p.logger.Info("[pipeline] Run %s: %s", stats.RunID, p.opts.SearchURL)

	summaries, err := p.collect(ctx, &stats)
	if err != nil {
		return nil, err
	}
	stats.Collected = len(summaries)
	p.logger.Info("[pipeline] Collected %d unique listings (%s)", stats.Collected, stats.StopReason)

	if p.opts.Screener != nil {
		summaries, stats.Screened = p.opts.Screener.Screen(summaries)
		if stats.Screened > 0 {
			p.logger.Info("[screen] Dropped %d listings, %d left", stats.Screened, len(summaries))
		}
	}

	admitted, dropped := p.opts.Filter.Pre(summaries)
	stats.PreFiltered = dropped
	stats.Admitted = len(admitted)
	if dropped > 0 {
		p.logger.Info("[filter] Skipping detail for %d listings by list category (%d admitted)", dropped, len(admitted))
	}

	var merged []models.MergedRecord
	if p.opts.ListOnly {
		merged = make([]models.MergedRecord, 0, len(admitted))
		for _, s := range admitted {
			merged = append(merged, Merge(s, nil))
		}
	} else {
		merged = p.enrich(ctx, admitted, &stats)
	}

	records, rejected, unresolved := p.opts.Filter.Post(merged)
	stats.PostRejected = rejected
	stats.PostUnresolved = unresolved
	stats.Written = len(records)
	if p.opts.Filter.Enabled() {
		p.logger.Info("[filter] Kept %d records (%d rejected, %d without category)", len(records), rejected, unresolved)
	}

	stats.Elapsed = time.Since(stats.StartedAt)
	return &Result{Records: records, Stats: stats}, nil
}

// collect expands the list and returns its unique summaries.
func (p *Pipeline) collect(ctx context.Context, stats *models.RunStats) ([]models.ListingSummary, error) {
	page, err := p.surface.OpenList(ctx, p.opts.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: open list: %v", ErrSurfaceUnavailable, err)
	}
	defer page.Close()

	extractor := NewListExtractor(page, p.logger)
	expander := NewExpander(page, p.logger, func(ctx context.Context) error {
		_, err := extractor.ExtractAll(ctx)
		return err
	})

	res, err := expander.Expand(ctx, p.opts.TargetCount, p.opts.PollInterval, p.opts.PollMax)
	stats.Rendered = res.Count
	stats.StopReason = string(res.Reason)
	if err != nil {
		if isCancel(ctx, err) {
			p.logger.Warn("[pipeline] Interrupted during expansion, keeping %d listings", len(extractor.Summaries()))
			stats.StopReason = "interrupted"
			return extractor.Summaries(), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}

	summaries, err := extractor.ExtractAll(ctx)
	if err != nil {
		if isCancel(ctx, err) {
			return summaries, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	return summaries, nil
}

func (p *Pipeline) enrich(ctx context.Context, admitted []models.ListingSummary, stats *models.RunStats) []models.MergedRecord {
	if len(admitted) == 0 {
		return nil
	}

	p.logger.Info("[detail] Fetching %d detail pages, %d at a time", len(admitted), p.opts.Enrich.Concurrency)
	enricher := NewEnricher(p.surface, p.opts.Enrich, p.logger)
	pairs, report := enricher.Enrich(ctx, admitted)

	stats.DetailOK = report.OK
	stats.DetailFailed = report.Failed
	stats.Cancelled = report.Cancelled
	p.logger.Info("[detail] Done: %d ok, %d failed, %d cancelled", report.OK, report.Failed, report.Cancelled)

	merged := make([]models.MergedRecord, 0, len(pairs))
	for _, pair := range pairs {
		merged = append(merged, Merge(pair.Summary, pair.Detail))
	}
	return merged
}

func isCancel(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
