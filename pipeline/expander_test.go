package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daangn-crawler/models"
)

const (
	testPoll    = time.Millisecond
	testPollMax = 20 * time.Millisecond
)

func noCategory(int) *string { return nil }

func TestCheckRound(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		target  int
		control LoadMoreState
		want    State
	}{
		{"target beats missing control", 10, 10, LoadMoreAbsent, TargetReached},
		{"over target", 12, 10, LoadMoreReady, TargetReached},
		{"control absent", 5, 10, LoadMoreAbsent, Exhausted},
		{"control disabled", 5, 10, LoadMoreDisabled, Exhausted},
		{"keep going", 5, 10, LoadMoreReady, Expanding},
		{"zero target", 0, 0, LoadMoreReady, TargetReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkRound(tt.count, tt.target, tt.control))
		})
	}
}

func TestCheckPoll(t *testing.T) {
	assert.Equal(t, Expanding, checkPoll(10, 11))
	assert.Equal(t, Stalled, checkPoll(10, 10))
	assert.Equal(t, Stalled, checkPoll(10, 9))
}

func TestExpand_TargetReached(t *testing.T) {
	page := newFakeListPage(makeSummaries(30, noCategory), 10, 10)
	e := NewExpander(page, quietLogger(), nil)

	res, err := e.Expand(context.Background(), 25, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonTargetReached, res.Reason)
	assert.GreaterOrEqual(t, res.Count, 25)
	assert.Equal(t, 2, res.Rounds)
}

func TestExpand_Exhausted(t *testing.T) {
	page := newFakeListPage(makeSummaries(20, noCategory), 10, 10)
	e := NewExpander(page, quietLogger(), nil)

	res, err := e.Expand(context.Background(), 100, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, 20, res.Count)
}

func TestExpand_DisabledControl(t *testing.T) {
	page := newFakeListPage(makeSummaries(20, noCategory), 10, 10)
	page.control = LoadMoreDisabled
	e := NewExpander(page, quietLogger(), nil)

	res, err := e.Expand(context.Background(), 100, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, 0, page.loads)
}

func TestExpand_Stalled(t *testing.T) {
	page := newFakeListPage(makeSummaries(15, noCategory), 10, 10)
	page.absentWhenDone = false
	e := NewExpander(page, quietLogger(), nil)

	res, err := e.Expand(context.Background(), 100, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonStalled, res.Reason)
	assert.Equal(t, 15, res.Count)
	assert.Equal(t, 2, page.loads, "one growing round and one stalled round")
}

func TestExpand_ZeroTargetNeverClicks(t *testing.T) {
	page := newFakeListPage(makeSummaries(10, noCategory), 10, 10)
	e := NewExpander(page, quietLogger(), nil)

	res, err := e.Expand(context.Background(), 0, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonTargetReached, res.Reason)
	assert.Equal(t, 0, page.loads)
}

func TestExpand_ClickFailureIsExhausted(t *testing.T) {
	page := newFakeListPage(makeSummaries(30, noCategory), 10, 10)
	page.loadErr = errors.New("node not clickable")
	e := NewExpander(page, quietLogger(), nil)

	res, err := e.Expand(context.Background(), 100, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, 10, res.Count)
}

func TestExpand_StepHookRunsOncePerRound(t *testing.T) {
	page := newFakeListPage(makeSummaries(40, noCategory), 10, 10)
	steps := 0
	e := NewExpander(page, quietLogger(), func(ctx context.Context) error {
		steps++
		return nil
	})

	res, err := e.Expand(context.Background(), 1000, testPoll, testPollMax)
	require.NoError(t, err)
	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, res.Rounds, steps)
}

func TestExpand_StepHookErrorStops(t *testing.T) {
	page := newFakeListPage(makeSummaries(40, noCategory), 10, 10)
	boom := errors.New("dom detached")
	e := NewExpander(page, quietLogger(), func(ctx context.Context) error { return boom })

	_, err := e.Expand(context.Background(), 1000, testPoll, testPollMax)
	assert.ErrorIs(t, err, boom)
}

func TestExpand_AlwaysTerminates(t *testing.T) {
	for _, target := range []int{0, 1, 9, 10, 11, 35, 50, 1000} {
		page := newFakeListPage(makeSummaries(35, noCategory), 10, 5)
		e := NewExpander(page, quietLogger(), nil)

		res, err := e.Expand(context.Background(), target, testPoll, testPollMax)
		require.NoError(t, err)
		assert.Contains(t, []StopReason{ReasonTargetReached, ReasonExhausted, ReasonStalled}, res.Reason)
		if res.Reason == ReasonTargetReached {
			assert.GreaterOrEqual(t, res.Count, target)
		}
	}
}

func TestExpand_Cancelled(t *testing.T) {
	page := newFakeListPage(makeSummaries(100, noCategory), 10, 0)
	page.absentWhenDone = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExpander(page, quietLogger(), nil)
	_, err := e.Expand(ctx, 50, testPoll, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateReason(t *testing.T) {
	assert.Equal(t, "target_reached", TargetReached.String())
	assert.Equal(t, "expanding", Expanding.String())
	assert.Equal(t, StopReason(""), Expanding.Reason())
	assert.Equal(t, models.ListingStatus("selling"), models.StatusSelling)
}
