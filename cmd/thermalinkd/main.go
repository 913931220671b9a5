// Command thermalinkd runs the thermal camera connection daemon: it
// discovers a camera, establishes and supervises the session, and publishes
// lifecycle notifications and metrics.
//
// With -mock it runs against the in-process simulated driver, which is the
// only mode available until a native driver binding is linked in.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360/thermalink/config"
	"github.com/c360/thermalink/device"
	"github.com/c360/thermalink/gate"
	"github.com/c360/thermalink/health"
	"github.com/c360/thermalink/locks"
	"github.com/c360/thermalink/metric"
	"github.com/c360/thermalink/notify"
	"github.com/c360/thermalink/registry"
	"github.com/c360/thermalink/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "thermalinkd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration")
	mock := flag.Bool("mock", false, "use the in-process simulated driver")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	log.Info("thermalinkd starting", "config", *configPath, "mock", *mock)

	var drv device.Driver
	if *mock {
		drv = device.NewMockDriver()
	} else {
		return fmt.Errorf("no native driver binding is linked in this build; run with -mock")
	}

	var notifier notify.Publisher = notify.Noop{}
	if cfg.NATS.URL != "" {
		np, nerr := notify.Connect(cfg.NATS.URL, log)
		if nerr != nil {
			return nerr
		}
		notifier = np
	}
	defer notifier.Close()

	metrics := metric.NewRegistry()
	lm := locks.NewManager(locks.WithTimeout(cfg.Session.LockTimeout))
	reg := registry.New(log)
	g := gate.New(log, lm)
	monitor := health.NewMonitor()

	sess := session.New(log, lm, drv, reg, g, sessionConfig(cfg),
		session.WithNotifier(notifier),
		session.WithMetrics(metrics.Metrics),
		session.WithHeartbeat(cfg.Heartbeat.IsEnabled()),
		session.WithHeartbeatInterval(cfg.Heartbeat.IntervalOrDefault()),
		session.WithHealthMonitor(monitor),
		session.WithFirstReadyHook(func(cam device.Camera, frame device.Frame) {
			// Downstream extraction handlers attach here once a live frame
			// exists. The daemon itself only records the milestone.
			log.Info("image pipeline ready", "thermal", frame.Thermal())
			monitor.UpdateHealthy("pipeline", "first frame proven")
		}),
	)

	var metricsSrv *http.Server
	if cfg.Metrics.IsEnabled() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			agg := monitor.AggregateHealth("thermalink")
			if !agg.Healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			fmt.Fprintln(w, agg.Status)
		})
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if serr := metricsSrv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
				log.Error("metrics endpoint failed", "error", serr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sess.AutoConnect(ctx) {
		monitor.UpdateHealthy("session", "connected")
	} else {
		monitor.UpdateUnhealthy("session", "auto-connect failed")
		log.Error("auto-connect failed; staying up for manual retry signals")
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	sess.Disconnect(false)
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
			log.Warn("metrics endpoint shutdown failed", "error", serr)
		}
	}
	log.Info("thermalinkd stopped")
	return nil
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		ScanTimeout:       cfg.Session.ScanTimeout,
		ScanInterval:      cfg.Session.ScanInterval,
		ConnectTimeout:    cfg.Session.ConnectTimeout,
		ConnectInterval:   cfg.Session.ConnectInterval,
		AutoConnectWindow: cfg.Session.AutoConnectWindow,
		AutoConnectPoll:   cfg.Session.AutoConnectPoll,
		StrictAuth:        cfg.Session.StrictAuth,
		DefaultFormat:     cfg.Session.DefaultFormat,
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
