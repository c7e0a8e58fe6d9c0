// Package pipeline drives one crawl: expand the search list, extract
// summaries, filter them by category, enrich the survivors from their detail
// pages and hand back the final record set.
//
// The package never talks to a browser directly. It works against ListPage
// and DetailFetcher, which scraper/daangn implements with chromedp and tests
// implement with in-memory fakes.
package pipeline

import (
	"context"
	"errors"

	"daangn-crawler/models"
)

// ErrSurfaceUnavailable wraps failures to open or read the rendered list.
var ErrSurfaceUnavailable = errors.New("render surface unavailable")

// ErrNoContent is recorded when a detail page loaded but yielded nothing usable.
var ErrNoContent = errors.New("detail page has no usable content")

// LoadMoreState describes the "load more" control on the list page.
type LoadMoreState int

const (
	LoadMoreAbsent LoadMoreState = iota
	LoadMoreDisabled
	LoadMoreReady
)

func (s LoadMoreState) String() string {
	switch s {
	case LoadMoreAbsent:
		return "absent"
	case LoadMoreDisabled:
		return "disabled"
	case LoadMoreReady:
		return "ready"
	}
	return "unknown"
}

// ListPage is a rendered search results page.
type ListPage interface {
	// Count returns the number of listing cards currently rendered.
	Count(ctx context.Context) (int, error)
	// LoadMoreState inspects the "load more" control.
	LoadMoreState(ctx context.Context) (LoadMoreState, error)
	// LoadMore triggers the "load more" control once.
	LoadMore(ctx context.Context) error
	// Cards reads every rendered card in page order. Cards may repeat and
	// may lack a URL; the caller deduplicates.
	Cards(ctx context.Context) ([]models.ListingSummary, error)
	Close() error
}

// DetailFetcher loads one detail page and extracts its fields. It must honour
// ctx cancellation and deadlines.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, url string) (*models.ListingDetail, error)
}

// Surface is the browser-side collaborator of the pipeline.
type Surface interface {
	OpenList(ctx context.Context, url string) (ListPage, error)
	DetailFetcher
}
