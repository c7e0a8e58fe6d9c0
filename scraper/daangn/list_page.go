package daangn

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"daangn-crawler/models"
	"daangn-crawler/pipeline"
	"daangn-crawler/utils"
)

var (
	countJS = fmt.Sprintf(`document.querySelectorAll(%q).length`, ItemSelector)

	// moreStateJS reports "absent", "disabled" or "ready" for the load more button.
	moreStateJS = fmt.Sprintf(`(function() {
		var b = document.querySelector(%q);
		if (!b) return "absent";
		if (b.disabled || b.getAttribute("aria-disabled") === "true") return "disabled";
		return "ready";
	})()`, MoreButtonSelector)
)

// listPage is the rendered search results tab.
type listPage struct {
	ctx          context.Context
	cancel       context.CancelFunc
	base         string
	logger       *utils.Logger
	clickTimeout time.Duration
}

var _ pipeline.ListPage = (*listPage)(nil)

// run executes actions on the tab but gives up as soon as ctx ends.
func (p *listPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return ctxErr(ctx, err)
	}
	return nil
}

func (p *listPage) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.run(ctx, chromedp.Evaluate(countJS, &n)); err != nil {
		return 0, fmt.Errorf("daangn: count cards: %w", err)
	}
	return n, nil
}

func (p *listPage) LoadMoreState(ctx context.Context) (pipeline.LoadMoreState, error) {
	var state string
	if err := p.run(ctx, chromedp.Evaluate(moreStateJS, &state)); err != nil {
		return pipeline.LoadMoreAbsent, fmt.Errorf("daangn: inspect load more: %w", err)
	}
	switch state {
	case "ready":
		return pipeline.LoadMoreReady, nil
	case "disabled":
		return pipeline.LoadMoreDisabled, nil
	default:
		return pipeline.LoadMoreAbsent, nil
	}
}

// LoadMore clicks the button. The click is bounded so a button that vanishes
// between the state check and the click does not hang the run.
func (p *listPage) LoadMore(ctx context.Context) error {
	clickCtx, cancel := context.WithTimeout(ctx, p.clickTimeout)
	defer cancel()
	if err := p.run(clickCtx, chromedp.Click(MoreButtonSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("daangn: click load more: %w", err)
	}
	return nil
}

func (p *listPage) Cards(ctx context.Context) ([]models.ListingSummary, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("daangn: read list: %w", err)
	}
	cards, err := ParseListHTML(html, p.base)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("[browser] Parsed %d cards", len(cards))
	return cards, nil
}

func (p *listPage) Close() error {
	p.cancel()
	return nil
}
