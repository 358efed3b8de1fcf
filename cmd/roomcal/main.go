package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomcal/internal/booking"
	"roomcal/internal/calendar"
	"roomcal/internal/capture"
	"roomcal/internal/config"
	"roomcal/internal/dates"
	appLog "roomcal/internal/log"
	"roomcal/internal/schedule"
	"roomcal/internal/store"
	"roomcal/internal/web"
)

type flagConfig struct {
	configPath  string
	listen      string
	capturePath string
	debug       bool
}

func main() {
	appLog.Info("roomcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	client := booking.NewClient(conf.APIBaseURL, booking.WithTimeout(conf.RequestTimeout))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"api_base_url", client.BaseURL(),
		"locale", conf.Locale,
		"health_check", conf.HealthCheck,
		"refresh", conf.RefreshCron,
		"request_timeout", conf.RequestTimeout.String(),
		"capture", flags.capturePath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st := store.New(client, store.WithHealthCheck(conf.HealthCheck))
	defer st.Close()

	now := time.Now()
	session := calendar.NewSession(st, now, dates.ParseLocale(conf.Locale), nil)

	srv, err := web.NewServer(conf, session, nil)
	if err != nil {
		appLog.Error("failed to build web server", err)
		os.Exit(1)
	}

	if flags.capturePath != "" {
		if err := runCapture(ctx, conf, srv, st, now, flags.capturePath); err != nil {
			appLog.Error("capture failed", err, "output", flags.capturePath)
			os.Exit(1)
		}
		appLog.Info("capture written", "output", flags.capturePath)
		return
	}

	// The page shows the loading state until the first fetch lands.
	go func() {
		if err := st.Init(ctx, now); err != nil && !errors.Is(err, store.ErrStale) {
			appLog.Error("initial load failed", err)
		}
	}()

	if conf.RefreshCron != "" {
		sched, err := schedule.Start(ctx, conf.RefreshCron, "refresh", session.Refresh)
		if err != nil {
			appLog.Error("refresh schedule disabled", err, "spec", conf.RefreshCron)
		} else {
			defer sched.Stop()
		}
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}

	appLog.Info("roomcal exiting")
}

// runCapture serves the UI long enough to load the week and screenshot it.
func runCapture(ctx context.Context, conf *config.Config, srv *web.Server, st *store.Store, now time.Time, out string) error {
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return err
	}

	sctx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(sctx, ln) }()

	// A probe or fetch failure is rendered as the error panel and captured.
	if err := st.Init(ctx, now); err != nil {
		appLog.Info("capturing error state", "err", err)
	}

	err = capture.CalendarPNG(ctx, capture.Options{
		URL:        "http://" + ln.Addr().String() + "/",
		OutputPath: out,
	})

	stop()
	if serr := <-errCh; serr != nil && !errors.Is(serr, http.ErrServerClosed) && err == nil {
		err = serr
	}
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/roomcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.capturePath, "capture", "", "Load the current week, write a PNG screenshot to this path and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
