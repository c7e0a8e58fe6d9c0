package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

// EnrichOptions bounds the detail stage.
type EnrichOptions struct {
	Concurrency  int
	ItemTimeout  time.Duration
	SuccessDelay time.Duration // slot cooldown after a successful fetch
	FailureDelay time.Duration // slot cooldown after a failed fetch
	RateLimit    time.Duration // minimum spacing between any two fetches, 0 disables
}

// Enriched pairs a summary with the detail fetched for it.
type Enriched struct {
	Summary models.ListingSummary
	Detail  *models.ListingDetail
}

// EnrichReport counts detail outcomes. OK+Failed+Cancelled equals the
// number of admitted summaries.
type EnrichReport struct {
	OK        int
	Failed    int
	Cancelled int
	Peak      int
}

type slotState int

const (
	slotPending slotState = iota
	slotOK
	slotFailed
	slotCancelled
)

type slot struct {
	state  slotState
	detail *models.ListingDetail
}

// Enricher fetches detail pages on a bounded pool.
type Enricher struct {
	fetcher DetailFetcher
	opts    EnrichOptions
	logger  *utils.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(fetcher DetailFetcher, opts EnrichOptions, logger *utils.Logger) *Enricher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Enricher{fetcher: fetcher, opts: opts, logger: logger}
}

// Enrich fetches the detail page of every admitted summary and returns the
// successes in admitted order. A failed item never stops the others and is
// not retried. When ctx ends, queued items are counted as cancelled and the
// successes so far are still returned.
func (e *Enricher) Enrich(ctx context.Context, admitted []models.ListingSummary) ([]Enriched, EnrichReport) {
	slots := make([]slot, len(admitted))
	pool := utils.NewWorkerPool(e.opts.Concurrency, e.opts.RateLimit)
	total := len(admitted)
	var started atomic.Int64

	for i := range admitted {
		i := i
		err := pool.Submit(ctx, func() time.Duration {
			started.Add(1)
			cooldown := e.fetchOne(ctx, i, total, admitted[i], &slots[i])
			// No item is left waiting for a slot.
			if started.Load() == int64(total) {
				return 0
			}
			return cooldown
		})
		if err != nil {
			e.logger.Warn("[detail] Stopped dispatching at %d/%d: %v", i, total, err)
			break
		}
	}
	pool.Wait()

	var report EnrichReport
	out := make([]Enriched, 0, total)
	for i, s := range slots {
		switch s.state {
		case slotOK:
			report.OK++
			out = append(out, Enriched{Summary: admitted[i], Detail: s.detail})
		case slotFailed:
			report.Failed++
		default:
			report.Cancelled++
		}
	}
	report.Peak = pool.Peak()
	return out, report
}

// fetchOne runs in a pool slot and writes only to its own slot. It returns
// the cooldown the slot observes before taking the next item. Once every
// item has started, Enrich drops the cooldown.
func (e *Enricher) fetchOne(ctx context.Context, i, total int, s models.ListingSummary, out *slot) time.Duration {
	itemCtx, cancel := context.WithTimeout(ctx, e.opts.ItemTimeout)
	defer cancel()

	start := time.Now()
	detail, err := e.fetcher.FetchDetail(itemCtx, s.URL)
	if err == nil && !detail.Usable() {
		err = ErrNoContent
	}

	if err != nil {
		if ctx.Err() != nil {
			out.state = slotCancelled
			return 0
		}
		out.state = slotFailed
		e.logger.Warn("[detail] %d/%d failed after %v: %s: %v",
			i+1, total, time.Since(start).Round(time.Millisecond), s.URL, err)
		return e.opts.FailureDelay
	}

	out.state = slotOK
	out.detail = detail
	title := detail.Title
	if title == "" {
		title = s.Title
	}
	e.logger.Info("[detail] %d/%d %s", i+1, total, truncate(title, 30))
	return e.opts.SuccessDelay
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
