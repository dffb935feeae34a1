package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	flag "github.com/spf13/pflag"

	"shopcal/internal/calendar"
	"shopcal/internal/clock"
	"shopcal/internal/config"
	"shopcal/internal/hours"
	appLog "shopcal/internal/log"
	"shopcal/internal/schedule"
	"shopcal/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		os.Exit(runHashPassword(os.Args[2:]))
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("shopcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"tick", conf.Tick,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"backfill_days", conf.BackfillDays,
		"feed_count", len(conf.Feeds),
		"rule_count", len(conf.BusinessHours),
		"once", flags.once,
	)

	clk, err := clock.New(conf.Tick, conf.Location())
	if err != nil {
		appLog.Error("invalid tick schedule", err)
		os.Exit(1)
	}
	store := web.NewStore(conf, clk.Location(), clk)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := store.Refresh(ctx); err != nil {
		appLog.Error("initial refresh incomplete", err)
	}

	if flags.once {
		if err := printToday(conf, store, clk.Now()); err != nil {
			appLog.Error("failed to write day view", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, conf, store, clk); err != nil {
		appLog.Error("shopcal stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("shopcal exiting")
}

// run serves HTTP and drives the clock until ctx is cancelled.
func run(ctx context.Context, conf *config.Config, store *web.Store, clk *clock.Clock) error {
	policy := conf.CarryOver
	lastDay := clk.Now()
	clk.OnTick(func(now time.Time) {
		if schedule.SameDate(now, lastDay) {
			return
		}
		lastDay = now
		overdue := schedule.ResolveCarryOver(store.Snapshot(), now, policy)
		appLog.Info("day rolled over", "date", now.Format(time.DateOnly), "carry_over", len(overdue))
	})

	if err := clk.Every(conf.RefreshCron, func(ctx context.Context) {
		if err := store.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh incomplete", err)
		}
	}); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, store, clk).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	clk.Start()
	defer clk.Stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// printToday writes today's day view as JSON to stdout.
func printToday(conf *config.Config, store *web.Store, now time.Time) error {
	table := hours.NewTable(conf.BusinessHours)
	view := calendar.Day(store.Snapshot(), table, now, now, web.ViewOptions(conf))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	fs := flag.NewFlagSet("shopcal", flag.ExitOnError)
	fs.StringVarP(&cfg.configPath, "config", "c", "./shopcal.yaml", "Path to config file")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.BoolVar(&cfg.once, "once", false, "Refresh feeds once, print today's view and exit")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shopcal [OPTIONS]\n       shopcal hash-password [OPTIONS]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[1:])

	return cfg
}
