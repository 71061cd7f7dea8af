package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tutorcal/internal/api"
	"tutorcal/internal/capture"
	"tutorcal/internal/config"
	"tutorcal/internal/grid"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
	"tutorcal/internal/notify"
	"tutorcal/internal/view"
	"tutorcal/internal/web"
)

type flagConfig struct {
	configPath  string
	listen      string
	once        bool
	capture     bool
	noReminders bool
	debug       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	appLog.Info("tutorcal starting", "version", "0.1.0")

	loadDotEnv(filepath.Join(filepath.Dir(flags.configPath), ".env"))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone; using UTC", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"api", conf.APIBaseURL,
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"reminder_lead", conf.ReminderLead.Std().String(),
		"once", flags.once,
		"capture", flags.capture,
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

	session := api.NewSession(os.Getenv(conf.TokenEnv))
	if session.Token() == "" || session.Expired(time.Now()) {
		appLog.Warn("bearer token missing or expired", "env", conf.TokenEnv)
	}
	session.Subscribe(func(token string) {
		if token == "" {
			appLog.Warn("session cleared; set a new token and restart", "env", conf.TokenEnv)
		}
	})

	client, err := api.NewClient(conf.APIBaseURL, session, conf.RequestTimeout.Std())
	if err != nil {
		appLog.Error("invalid api_base_url", err, "api", conf.APIBaseURL)
		os.Exit(1)
	}

	platform := notify.NewLocalPlatform(func(req notify.Request) {
		appLog.Info("reminder", "id", req.ID, "title", req.Content.Title, "body", req.Content.Body)
	})
	defer platform.Close()
	if flags.noReminders {
		platform.SetPermission(false)
	}
	reminders := notify.NewScheduler(platform, conf.ReminderLead.Std(), loc)

	schedView := view.New(client, view.Options{
		Location:  loc,
		WeekStart: grid.ParseWeekStart(conf.WeekStart),
		OnCurrentWeek: func(s model.Schedule) {
			reminders.Dispatch(ctx, s)
		},
	})

	previewPath := "/var/lib/tutorcal/preview.png"
	if flags.debug {
		previewPath = "./cache/preview.png"
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, schedView, previewPath).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		appLog.Error("failed to listen", err, "listen", conf.Listen)
		os.Exit(1)
	}
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	refresh := func(ctx context.Context) {
		if err := schedView.Sync(ctx); err != nil {
			return
		}
		if !flags.capture {
			return
		}
		opts := capture.Options{
			URL:        "http://" + conf.Listen + "/calendar",
			OutputPath: previewPath,
		}
		if conf.BasicAuth != nil {
			opts.Username = conf.BasicAuth.Username
			opts.Password = conf.BasicAuth.Password
		}
		err := capture.CapturePNG(ctx, opts)
		if err != nil {
			appLog.Error("preview capture failed", err)
			return
		}
		appLog.Debug("preview captured", "path", previewPath)
	}

	if flags.once {
		refresh(ctx)
		schedView.Wait()
		reminders.Wait()
		shutdown(srv)
		return
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(conf.RefreshCron, func() { refresh(ctx) }); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	// First load without waiting for the cron tick.
	go refresh(ctx)

	<-ctx.Done()

	<-c.Stop().Done()
	shutdown(srv)
	schedView.Wait()
	reminders.Wait()
	appLog.Info("tutorcal exiting")
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
}

// loadDotEnv reads KEY=VALUE pairs next to the config file. Variables
// already set in the environment win.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		appLog.Error("failed to read .env", err, "path", path)
		return
	}
	appLog.Debug("loaded .env", "path", path)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/tutorcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch (+reminders, +capture) cycle and exit")
	flag.BoolVar(&cfg.capture, "capture", false, "Write a PNG preview of /calendar after each refresh")
	flag.BoolVar(&cfg.noReminders, "no-reminders", false, "Do not schedule lesson reminders")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and ./cache for the preview")

	flag.Parse()

	return cfg
}
