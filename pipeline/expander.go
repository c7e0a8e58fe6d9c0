package pipeline

import (
	"context"
	"fmt"
	"time"

	"daangn-crawler/utils"
)

// State is a Page Expander state. Every state other than Expanding is terminal.
type State int

const (
	Expanding State = iota
	TargetReached
	Exhausted
	Stalled
)

// StopReason is the reported name of a terminal state.
type StopReason string

const (
	ReasonTargetReached StopReason = "target_reached"
	ReasonExhausted     StopReason = "exhausted"
	ReasonStalled       StopReason = "stalled"
)

// Reason maps a terminal state to its StopReason.
func (s State) Reason() StopReason {
	switch s {
	case TargetReached:
		return ReasonTargetReached
	case Exhausted:
		return ReasonExhausted
	case Stalled:
		return ReasonStalled
	}
	return ""
}

func (s State) String() string {
	if s == Expanding {
		return "expanding"
	}
	return string(s.Reason())
}

// checkRound is taken at the top of every round, in priority order: target
// first, then the load-more control.
func checkRound(count, target int, control LoadMoreState) State {
	if count >= target {
		return TargetReached
	}
	if control != LoadMoreReady {
		return Exhausted
	}
	return Expanding
}

// checkPoll is taken when a poll window ends.
func checkPoll(before, after int) State {
	if after > before {
		return Expanding
	}
	return Stalled
}

// ExpandResult is what the expander reports when it stops.
type ExpandResult struct {
	Count  int
	Reason StopReason
	Rounds int
}

// Expander clicks "load more" until the target is met or the list stops growing.
type Expander struct {
	page   ListPage
	logger *utils.Logger
	onStep func(ctx context.Context) error
}

// NewExpander creates an Expander over page. onStep, if non-nil, runs once
// after every expansion step.
func NewExpander(page ListPage, logger *utils.Logger, onStep func(ctx context.Context) error) *Expander {
	return &Expander{page: page, logger: logger, onStep: onStep}
}

// Expand runs the expansion loop. Running out of items is not an error: the
// three stop reasons are all normal exits. Errors are only returned when the
// page cannot be read or ctx ends.
func (e *Expander) Expand(ctx context.Context, target int, pollInterval, pollMax time.Duration) (ExpandResult, error) {
	res := ExpandResult{}

	count, err := e.page.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("expand: count: %w", err)
	}
	res.Count = count

	for {
		state := checkRound(count, target, LoadMoreReady)
		if state == Expanding {
			control, err := e.page.LoadMoreState(ctx)
			if err != nil {
				return res, fmt.Errorf("expand: inspect load more: %w", err)
			}
			state = checkRound(count, target, control)
			if state == Exhausted {
				e.logger.Info("[expand] Load more control %s at %d cards", control, count)
			}
		}
		if state != Expanding {
			res.Reason = state.Reason()
			return res, nil
		}

		if err := e.page.LoadMore(ctx); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			e.logger.Warn("[expand] Load more click failed at %d cards: %v", count, err)
			res.Reason = ReasonExhausted
			return res, nil
		}
		res.Rounds++

		after, err := e.poll(ctx, count, pollInterval, pollMax)
		if err != nil {
			return res, err
		}

		if e.onStep != nil {
			if err := e.onStep(ctx); err != nil {
				return res, fmt.Errorf("expand: step %d: %w", res.Rounds, err)
			}
		}

		if checkPoll(count, after) == Stalled {
			e.logger.Info("[expand] No growth within %v after round %d (%d cards)", pollMax, res.Rounds, after)
			res.Reason = ReasonStalled
			return res, nil
		}

		count = after
		res.Count = count
		e.logger.Info("[expand] Round %d: %d cards", res.Rounds, count)
	}
}

// poll re-reads the card count every interval until it exceeds before or the
// window closes, and returns the last count seen.
func (e *Expander) poll(ctx context.Context, before int, interval, window time.Duration) (int, error) {
	deadline := time.Now().Add(window)
	last := before
	for {
		if err := utils.Sleep(ctx, interval); err != nil {
			return last, err
		}

		n, err := e.page.Count(ctx)
		if err != nil {
			return last, fmt.Errorf("expand: poll count: %w", err)
		}
		last = n
		if n > before || !time.Now().Before(deadline) {
			return last, nil
		}
	}
}
