package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"bookcal/internal/booking"
	"bookcal/internal/catalog"
	"bookcal/internal/config"
	"bookcal/internal/extcal"
	appLog "bookcal/internal/log"
	"bookcal/internal/model"
	"bookcal/internal/store"
	"bookcal/internal/timeline"
	"bookcal/internal/timeval"
	"bookcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	once       bool
}

// logNotifier logs confirmed bookings. It stands where an e-mail or
// chat hook would go.
type logNotifier struct{}

func (logNotifier) BookingConfirmed(b model.Booking, quote decimal.Decimal) {
	appLog.Info("booking confirmed",
		"id", b.ID,
		"date", b.Date.Format("2006-01-02"),
		"name", b.Owner.Name,
		"quote", quote.String(),
	)
}

func main() {
	appLog.Info("bookcal starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"cache_ttl_hours", conf.CacheTTLHours,
		"window_back_days", conf.Window.BackDays,
		"window_ahead_days", conf.Window.AheadDays,
		"resource_count", len(conf.Resources),
		"feed_count", len(conf.Feeds),
		"once", flags.once,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

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

	st, err := store.Open(conf.DatabaseURL, loc)
	if err != nil {
		appLog.Error("failed to open booking store", err)
		os.Exit(1)
	}
	if err := st.Migrate(); err != nil {
		appLog.Error("failed to migrate booking store", err)
		os.Exit(1)
	}

	entries := make([]catalog.Entry, 0, len(conf.Resources))
	for _, r := range conf.Resources {
		entries = append(entries, catalog.Entry{Name: r.Name, Color: r.Color, Rate: r.HourlyRate})
	}
	cat := catalog.FromEntries(entries)

	cache := timeline.NewCache(time.Duration(conf.CacheTTLHours) * time.Hour)

	window := func() model.TimeWindow {
		return timeline.WindowFrom(time.Now().In(loc), conf.Window.BackDays, conf.Window.AheadDays)
	}
	importer := extcal.NewImporter(extcal.NewFetcher(conf.FeedCacheDir), conf.Feeds, loc, window)
	if len(conf.Feeds) > 0 {
		if err := importer.Refresh(ctx); err != nil {
			appLog.Error("initial feed refresh failed", err)
		}
	}

	if flags.once {
		appLog.Info("single-shot refresh done, exiting")
		return
	}

	officeStart, err := timeval.Normalize(conf.Rules.OfficeStart)
	if err != nil {
		appLog.Error("invalid office_start in config", err, "value", conf.Rules.OfficeStart)
		os.Exit(1)
	}
	officeEnd, err := timeval.Normalize(conf.Rules.OfficeEnd)
	if err != nil {
		appLog.Error("invalid office_end in config", err, "value", conf.Rules.OfficeEnd)
		os.Exit(1)
	}

	svc := booking.New(st, importer, cat, cache, logNotifier{}, booking.Rules{
		MinAdvance:  time.Duration(conf.Rules.MinAdvanceHours) * time.Hour,
		OfficeStart: officeStart,
		OfficeEnd:   officeEnd,
	})

	// Periodic feed refresh; the layout cache is dropped afterwards so
	// new blocks show up without waiting for the TTL.
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if err := importer.Refresh(ctx); err != nil {
			appLog.Error("scheduled feed refresh failed", err)
			return
		}
		cache.Invalidate()
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := web.NewServer(conf, cat, st, importer, svc, cache, loc)
	if err := web.StartServer(ctx, srv); err != nil {
		appLog.Error("HTTP server error", err)
		os.Exit(1)
	}

	appLog.Info("bookcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/bookcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.once, "once", false, "Refresh external feeds once and exit")

	flag.Parse()

	return cfg
}
