// Package clock drives the service's notion of "now" from a cron schedule.
//
// The tick job snapshots wall-clock time in the shop's zone and fans it out
// to subscribers (the web layer re-reads it for the time indicator). Extra
// jobs such as the feed refresh share the same cron runner.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "shopcal/internal/log"
)

// Source supplies the current time.
type Source interface {
	Now() time.Time
}

// Fixed is a Source frozen at one instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Clock is a cron-driven Source.
type Clock struct {
	cron *cron.Cron
	loc  *time.Location

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	now  time.Time
	subs []func(time.Time)
	wall func() time.Time
}

// New builds a Clock ticking on tickSpec (standard 5-field cron or a
// descriptor such as "@every 1m") in loc.
func New(tickSpec string, loc *time.Location) (*Clock, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	c := &Clock{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		loc:  loc,
		wall: time.Now,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.now = c.wall().In(loc)

	if _, err := c.cron.AddFunc(tickSpec, func() { c.tick(c.wall()) }); err != nil {
		return nil, fmt.Errorf("clock: tick spec %q: %w", tickSpec, err)
	}
	return c, nil
}

// Location returns the zone ticks are reported in.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the timestamp of the last tick.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// OnTick registers fn to run after every tick with the new time.
func (c *Clock) OnTick(fn func(now time.Time)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Every schedules fn on spec. fn's context is cancelled by Stop.
func (c *Clock) Every(spec string, fn func(ctx context.Context)) error {
	if _, err := c.cron.AddFunc(spec, func() { fn(c.ctx) }); err != nil {
		return fmt.Errorf("clock: job spec %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (c *Clock) Start() {
	appLog.Info("clock started", "location", c.loc.String(), "jobs", len(c.cron.Entries()))
	c.cron.Start()
}

// Stop cancels job contexts and waits for running jobs to return.
func (c *Clock) Stop() {
	c.cancel()
	<-c.cron.Stop().Done()
	appLog.Info("clock stopped")
}

func (c *Clock) tick(t time.Time) {
	t = t.In(c.loc)

	c.mu.Lock()
	c.now = t
	subs := append(([]func(time.Time))(nil), c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// cronLogger routes cron's internal logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
