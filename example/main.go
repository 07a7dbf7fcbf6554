package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/backend"
	"github.com/deeplooplabs/pagedcache/cache"
	"github.com/deeplooplabs/pagedcache/config"
	"github.com/deeplooplabs/pagedcache/hook"
	"github.com/deeplooplabs/pagedcache/metrics"
	"github.com/deeplooplabs/pagedcache/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	term := flag.String("q", "coffee", "search term")
	categories := flag.String("category", "", "comma separated categories")
	maxItems := flag.Int("max", 50, "stop after this many items")
	serve := flag.Bool("serve", false, "keep serving /metrics after loading")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("Configuration",
		"endpoint", cfg.Backend.Endpoint,
		"batch_size", cfg.Cache.BatchSize,
		"rate_limit", cfg.RateLimit.Enabled,
		"metrics", cfg.Metrics.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := newBackend(cfg)
	if err != nil {
		log.Fatalf("create backend: %v", err)
	}

	// Create hooks
	hooks := hook.NewRegistry()
	hooks.Register(hook.NewLoggingHook(logger))

	if cfg.Metrics.Enabled {
		hooks.Register(metrics.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("Metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server", "error", err)
			}
		}()
		defer srv.Close()
	}

	scroll := newScroller(hooks)

	c, err := cache.New[Place](ctx, b,
		cache.WithConfig(cfg.CacheConfig()),
		cache.WithHooks(hooks),
		cache.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("create cache: %v", err)
	}
	defer c.Close()

	var cats []string
	if *categories != "" {
		cats = strings.Split(*categories, ",")
	}
	c.SetQuery(pagedcache.NewQuery(*term, cats...))

	if err := scroll.run(ctx, c, *maxItems); err != nil {
		return
	}

	fmt.Printf("%d of %d places for %q\n", c.Len(), c.TotalCount(), *term)
	for i, p := range c.Items() {
		fmt.Printf("%3d  %-24s %-8s %.4f,%.4f\n", i, p.Name, p.Category, p.Lat, p.Lon)
	}

	stats := c.Stats()
	slog.Info("Done", "fetches", stats.Fetches, "failures", stats.Failures, "stale", stats.StaleResponses)

	if *serve && cfg.Metrics.Enabled {
		<-ctx.Done()
	}
}

func newLogger(lc config.LogConfig) *slog.Logger {
	level, _ := lc.SlogLevel()
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func newBackend(cfg *config.Config) (backend.Backend[Place], error) {
	var b backend.Backend[Place]
	if cfg.Backend.Endpoint == "" {
		slog.Info("No endpoint configured, using demo places")
		b = backend.NewMemory(demoPlaces).WithName("demo").WithMatch(matchPlace).WithDelay(50 * time.Millisecond)
	} else {
		h, err := backend.NewHTTP[Place](cfg.BackendConfig())
		if err != nil {
			return nil, err
		}
		b = h
	}

	if cfg.RateLimit.Enabled {
		b = backend.NewRateLimited(b, ratelimit.NewTokenBucket(cfg.RateLimitConfig()), true)
	}
	return b, nil
}
