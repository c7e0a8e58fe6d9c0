package pipeline

import (
	"context"
	"fmt"
	"strings"

	"daangn-crawler/models"
	"daangn-crawler/utils"
)

// ListExtractor accumulates unique summaries across repeated reads of the
// same list page. Re-reading after a "load more" yields earlier cards again;
// only URLs not seen before are appended.
type ListExtractor struct {
	page   ListPage
	logger *utils.Logger
	seen   *utils.URLSet

	summaries []models.ListingSummary
}

// NewListExtractor creates a ListExtractor reading from page.
func NewListExtractor(page ListPage, logger *utils.Logger) *ListExtractor {
	return &ListExtractor{
		page:   page,
		logger: logger,
		seen:   utils.NewURLSet(),
	}
}

// ExtractAll reads the rendered cards and returns every unique summary seen
// so far, in discovery order. Cards without a URL are dropped.
func (x *ListExtractor) ExtractAll(ctx context.Context) ([]models.ListingSummary, error) {
	cards, err := x.page.Cards(ctx)
	if err != nil {
		return x.Summaries(), fmt.Errorf("extract: read cards: %w", err)
	}

	added, noURL := 0, 0
	for _, c := range cards {
		c.URL = strings.TrimSpace(c.URL)
		if c.URL == "" {
			noURL++
			continue
		}
		if !x.seen.Add(c.URL) {
			continue
		}
		x.summaries = append(x.summaries, c)
		added++
	}

	x.logger.Debug("[extract] %d cards read, %d new, %d without url, %d total",
		len(cards), added, noURL, len(x.summaries))
	return x.Summaries(), nil
}

// Summaries returns a copy of the summaries collected so far.
func (x *ListExtractor) Summaries() []models.ListingSummary {
	out := make([]models.ListingSummary, len(x.summaries))
	copy(out, x.summaries)
	return out
}
