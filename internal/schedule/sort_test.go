package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcal/internal/model"
)

func withPriority(id string, p model.Priority, start time.Time) model.Event {
	e := ev(id, start, start.Add(time.Hour))
	e.Priority = p
	return e
}

func TestByPriority(t *testing.T) {
	base := ts(time.June, 10, 9, 0)
	events := []model.Event{
		withPriority("low-1", model.PriorityLow, base),
		withPriority("med-1", model.PriorityMedium, base.Add(3*time.Hour)),
		withPriority("high-1", model.PriorityHigh, base.Add(5*time.Hour)),
		withPriority("odd", model.Priority("urgent"), base),
		withPriority("med-2", model.PriorityMedium, base.Add(-time.Hour)),
		withPriority("high-2", model.PriorityHigh, base.Add(-2*time.Hour)),
		withPriority("low-2", model.PriorityLow, base.Add(-time.Hour)),
	}

	got := ids(ByPriority(events))
	want := []string{"high-1", "high-2", "med-1", "med-2", "low-1", "low-2", "odd"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ByPriority mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "low-1", events[0].ID, "input must not be reordered")
}

func TestByPriorityIsStable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	priorities := []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow}

	for round := 0; round < 50; round++ {
		n := rng.Intn(20)
		events := make([]model.Event, n)
		for i := range events {
			events[i] = withPriority(string(rune('a'+i)), priorities[rng.Intn(3)], ts(time.June, 1+rng.Intn(28), rng.Intn(24), 0))
		}

		sorted := ByPriority(events)
		require.Len(t, sorted, n)

		pos := map[string]int{}
		for i, e := range events {
			pos[e.ID] = i
		}
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			require.LessOrEqual(t, prev.Priority.Rank(), cur.Priority.Rank())
			if prev.Priority == cur.Priority {
				require.Less(t, pos[prev.ID], pos[cur.ID], "same-priority events keep input order")
			}
		}
	}
}

func TestChronologicalIgnoresPriority(t *testing.T) {
	events := []model.Event{
		withPriority("high-late", model.PriorityHigh, ts(time.June, 10, 15, 0)),
		withPriority("low-early", model.PriorityLow, ts(time.June, 10, 8, 0)),
		withPriority("med-tie-a", model.PriorityMedium, ts(time.June, 10, 11, 0)),
		withPriority("high-tie-b", model.PriorityHigh, ts(time.June, 10, 11, 0)),
	}
	assert.Equal(t, []string{"low-early", "med-tie-a", "high-tie-b", "high-late"}, ids(Chronological(events)))
}

func TestCapAfterSort(t *testing.T) {
	base := ts(time.June, 10, 8, 0)
	events := []model.Event{
		withPriority("l1", model.PriorityLow, base),
		withPriority("l2", model.PriorityLow, base),
		withPriority("h1", model.PriorityHigh, base),
		withPriority("m1", model.PriorityMedium, base),
		withPriority("h2", model.PriorityHigh, base),
	}

	shown, overflow := Cap(ByPriority(events), 3)
	assert.Equal(t, []string{"h1", "h2", "m1"}, ids(shown))
	assert.Equal(t, 2, overflow)

	shown, overflow = Cap(ByPriority(events), 0)
	assert.Len(t, shown, 5)
	assert.Zero(t, overflow)

	shown, overflow = Cap(ByPriority(events[:2]), 3)
	assert.Len(t, shown, 2)
	assert.Zero(t, overflow)

	shown, overflow = Cap(nil, 3)
	assert.Empty(t, shown)
	assert.Zero(t, overflow)
}
