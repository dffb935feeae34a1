package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every so often", time.UTC)
	assert.Error(t, err)
}

func TestNowStartsAtConstruction(t *testing.T) {
	before := time.Now()
	c, err := New("@every 1m", time.UTC)
	require.NoError(t, err)

	now := c.Now()
	assert.False(t, now.Before(before.Truncate(time.Second)))
	assert.Equal(t, time.UTC, now.Location())
}

func TestTickUpdatesNowAndNotifies(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	c, err := New("@every 1m", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, c.Location())

	var got []time.Time
	c.OnTick(func(now time.Time) { got = append(got, now) })

	instant := time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)
	c.tick(instant)

	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Hour())
	assert.Equal(t, loc, got[0].Location())
	assert.True(t, c.Now().Equal(instant))
}

func TestNewDefaultsToLocal(t *testing.T) {
	c, err := New("@every 1m", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, c.Location())
}

func TestEveryRejectsBadSpec(t *testing.T) {
	c, err := New("@every 1m", time.UTC)
	require.NoError(t, err)
	assert.Error(t, c.Every("61 * * * *", func(context.Context) {}))
}

func TestStopCancelsJobContext(t *testing.T) {
	c, err := New("@every 1m", time.UTC)
	require.NoError(t, err)
	require.NoError(t, c.Every("@every 1h", func(context.Context) {}))

	c.Start()
	c.Stop()

	select {
	case <-c.ctx.Done():
	default:
		t.Fatal("job context still live after Stop")
	}
}

func TestFixedSource(t *testing.T) {
	at := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	var src Source = Fixed(at)
	assert.Equal(t, at, src.Now())
}
