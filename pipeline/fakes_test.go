package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

func quietLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard) }

func strPtr(s string) *string { return &s }

// fakeListPage reveals `step` more cards per LoadMore out of a fixed universe.
type fakeListPage struct {
	mu sync.Mutex

	cards   []models.ListingSummary
	visible int
	step    int

	// control reported while cards remain; once all are visible the page
	// reports absentWhenDone ? LoadMoreAbsent : control.
	control        LoadMoreState
	absentWhenDone bool

	loadErr    error
	cardsCalls int
	loads      int
	closed     bool
}

func newFakeListPage(cards []models.ListingSummary, initial, step int) *fakeListPage {
	if initial > len(cards) {
		initial = len(cards)
	}
	return &fakeListPage{cards: cards, visible: initial, step: step, control: LoadMoreReady, absentWhenDone: true}
}

func (f *fakeListPage) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible, nil
}

func (f *fakeListPage) LoadMoreState(ctx context.Context) (LoadMoreState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visible >= len(f.cards) && f.absentWhenDone {
		return LoadMoreAbsent, nil
	}
	return f.control, nil
}

func (f *fakeListPage) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.visible += f.step
	if f.visible > len(f.cards) {
		f.visible = len(f.cards)
	}
	return nil
}

func (f *fakeListPage) Cards(ctx context.Context) ([]models.ListingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cardsCalls++
	out := make([]models.ListingSummary, f.visible)
	copy(out, f.cards[:f.visible])
	return out, nil
}

func (f *fakeListPage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeFetcher serves details from a map and tracks concurrency.
type fakeFetcher struct {
	details map[string]*models.ListingDetail
	hang    map[string]bool // block until ctx ends
	fail    map[string]bool
	delay   time.Duration

	inflight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64

	mu     sync.Mutex
	starts map[string]time.Time
}

func (f *fakeFetcher) startedAt(url string) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[url]
}

func (f *fakeFetcher) FetchDetail(ctx context.Context, url string) (*models.ListingDetail, error) {
	f.calls.Add(1)
	f.mu.Lock()
	if f.starts == nil {
		f.starts = make(map[string]time.Time)
	}
	f.starts[url] = time.Now()
	f.mu.Unlock()

	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.peak.Load()
		if n <= cur || f.peak.CompareAndSwap(cur, n) {
			break
		}
	}

	if f.hang[url] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[url] {
		return nil, errors.New("navigation failed")
	}
	if d, ok := f.details[url]; ok {
		return d, nil
	}
	return &models.ListingDetail{}, nil
}

// fakeSurface combines a list page and a fetcher.
type fakeSurface struct {
	page    *fakeListPage
	openErr error
	*fakeFetcher
}

func (s *fakeSurface) OpenList(ctx context.Context, url string) (ListPage, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.page, nil
}

func makeSummaries(n int, category func(i int) *string) []models.ListingSummary {
	out := make([]models.ListingSummary, n)
	for i := range out {
		out[i] = models.ListingSummary{
			URL:      fmt.Sprintf("https://www.daangn.com/kr/buy-sell/item-%d", i),
			Title:    fmt.Sprintf("item %d", i),
			Price:    "10,000원",
			Location: "역삼동",
			Time:     "1시간 전",
			Status:   models.StatusSelling,
			Category: category(i),
		}
	}
	return out
}
