package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shopcal/internal/model"
)

func withStatus(id string, status model.Status, start time.Time) model.Event {
	e := ev(id, start, start.Add(time.Hour))
	e.Status = status
	return e
}

func TestResolveCarryOverScenario(t *testing.T) {
	today := ts(time.June, 10, 9, 0)
	events := []model.Event{
		withStatus("jun-08", model.StatusScheduled, ts(time.June, 8, 10, 0)),
		withStatus("jun-09", model.StatusCompleted, ts(time.June, 9, 10, 0)),
		withStatus("jun-10", model.StatusScheduled, ts(time.June, 10, 7, 0)),
	}

	got := ResolveCarryOver(events, today, CarryOverPolicy{})
	assert.Equal(t, []string{"jun-08"}, ids(got))
}

func TestResolveCarryOverStatuses(t *testing.T) {
	today := ts(time.June, 10, 0, 0)
	past := ts(time.June, 5, 12, 0)

	tests := []struct {
		status model.Status
		want   bool
	}{
		{model.StatusScheduled, true},
		{model.StatusInProgress, true},
		{model.StatusCompleted, false},
		{model.StatusCancelled, true},
		{model.Status("awaiting parts"), true},
		{model.Status(""), true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			e := withStatus("x", tt.status, past)
			assert.Equal(t, tt.want, IsCarryOver(e, today, CarryOverPolicy{}))
		})
	}
}

func TestResolveCarryOverExcludeCancelledPolicy(t *testing.T) {
	today := ts(time.June, 10, 0, 0)
	e := withStatus("x", model.StatusCancelled, ts(time.June, 1, 9, 0))

	assert.True(t, IsCarryOver(e, today, CarryOverPolicy{}))
	assert.False(t, IsCarryOver(e, today, CarryOverPolicy{ExcludeCancelled: true}))
}

func TestResolveCarryOverIgnoresTimeOfDay(t *testing.T) {
	// Earlier today, even before "now", is not carry-over.
	e := withStatus("today-early", model.StatusScheduled, ts(time.June, 10, 0, 1))
	assert.False(t, IsCarryOver(e, ts(time.June, 10, 23, 59), CarryOverPolicy{}))

	// Late last night is carry-over right after midnight.
	e = withStatus("yesterday-late", model.StatusScheduled, ts(time.June, 9, 23, 59))
	assert.True(t, IsCarryOver(e, ts(time.June, 10, 0, 0), CarryOverPolicy{}))
}

func TestResolveCarryOverFollowsToday(t *testing.T) {
	events := []model.Event{
		withStatus("b", model.StatusScheduled, ts(time.June, 12, 9, 0)),
		withStatus("a", model.StatusInProgress, ts(time.June, 11, 9, 0)),
	}

	assert.Empty(t, ResolveCarryOver(events, ts(time.June, 11, 12, 0), CarryOverPolicy{}))
	assert.Equal(t, []string{"a"}, ids(ResolveCarryOver(events, ts(time.June, 12, 12, 0), CarryOverPolicy{})))
	assert.Equal(t, []string{"a", "b"}, ids(ResolveCarryOver(events, ts(time.June, 13, 0, 0), CarryOverPolicy{})), "sorted oldest first")
}

func TestResolveCarryOverComparesWallClockDates(t *testing.T) {
	// today expressed in another zone still compares by its calendar fields.
	loc := time.FixedZone("UTC-7", -7*3600)
	today := time.Date(2024, time.June, 10, 0, 30, 0, 0, loc)
	e := withStatus("x", model.StatusScheduled, ts(time.June, 10, 3, 0))

	assert.False(t, IsCarryOver(e, today, CarryOverPolicy{}))
}

func TestResolveCarryOverEmpty(t *testing.T) {
	assert.Empty(t, ResolveCarryOver(nil, ts(time.June, 10, 0, 0), CarryOverPolicy{}))
}
