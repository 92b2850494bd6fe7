package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tkbcal/internal/config"
	"tkbcal/internal/export"
	appLog "tkbcal/internal/log"
	"tkbcal/internal/notify"
	"tkbcal/internal/sheet"
	"tkbcal/internal/source"
	"tkbcal/internal/store"
	"tkbcal/internal/timetable"
	"tkbcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	importPath string
	exportFmt  string
	outPath    string
	once       bool
	debug      bool
}

// app is everything main wires together.
type app struct {
	cfg       *config.Config
	loc       *time.Location
	store     *store.Store
	svc       *timetable.Service
	sheetOpts sheet.Options
	planOpts  notify.PlanOptions
}

func main() {
	// .env is optional; it only seeds TKBCAL_* overrides.
	_ = godotenv.Load()

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("tkbcal starting", "version", version)

	a, err := newApp(flags)
	if err != nil {
		appLog.Error("startup failed", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	defer a.store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, a, flags); err != nil {
		appLog.Error("tkbcal failed", err)
		os.Exit(1)
	}
	appLog.Info("tkbcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", envOr("TKBCAL_CONFIG", "/etc/tkbcal/config.yaml"), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", os.Getenv("TKBCAL_LISTEN"), "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.importPath, "import", "", "Import a timetable spreadsheet (.xlsx/.xls) and exit")
	flag.StringVar(&cfg.exportFmt, "export", "", "Export the stored timetable as csv or ics and exit")
	flag.StringVar(&cfg.outPath, "out", "", "Export destination (default stdout)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh configured sources once and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newApp(flags flagConfig) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.listen != "" {
		cfg.Listen = flags.listen
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	}

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "timezone", cfg.Timezone)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o700); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	opts := timetable.Options{
		SubjectColumn: cfg.Timetable.SubjectColumn,
		SubjectLabels: cfg.Timetable.SubjectLabels,
		DateKeyLayout: cfg.Timetable.DateKeyLayout,
	}
	svc := timetable.NewService(st, opts)

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"database", cfg.DatabasePath,
		"header_row", cfg.Sheet.HeaderRow,
		"subject_column", cfg.Timetable.SubjectColumn,
		"sources", len(cfg.Sources),
		"notify", cfg.Notify.Enabled,
	)

	return &app{
		cfg:       cfg,
		loc:       loc,
		store:     st,
		svc:       svc,
		sheetOpts: sheet.Options{HeaderRow: cfg.Sheet.HeaderRow, Charset: cfg.Sheet.Charset},
		planOpts: notify.PlanOptions{
			Lead:     time.Duration(cfg.Notify.LeadMinutes) * time.Minute,
			Location: loc,
			Periods:  svc.Options().Periods,
		},
	}, nil
}

func run(ctx context.Context, a *app, flags flagConfig) error {
	switch {
	case flags.importPath != "":
		return importFile(ctx, a, flags.importPath)
	case flags.exportFmt != "":
		return exportTo(ctx, a, flags.exportFmt, flags.outPath)
	case flags.once:
		return a.refresher().Run(ctx)
	}
	return serve(ctx, a)
}

func importFile(ctx context.Context, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := sheet.Decode(f, filepath.Base(path), a.sheetOpts)
	if err != nil {
		return err
	}
	cur, err := a.svc.Import(ctx, filepath.Base(path), rows)
	if err != nil {
		return err
	}
	res := cur.Result
	fmt.Printf("imported %d rows: %d class days, %d subjects\n", len(rows), len(res.ScheduleByDate), len(res.Subjects))
	return nil
}

func exportTo(ctx context.Context, a *app, format, outPath string) error {
	cur, err := a.svc.Current(ctx)
	if err != nil {
		return err
	}
	if !cur.Found {
		return errors.New("no timetable imported yet")
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "csv":
		return export.WriteCSV(w, cur.Result, a.svc.Options().Periods)
	case "ics":
		return export.WriteICS(w, cur.Result, export.ICSOptions{
			Periods:  a.svc.Options().Periods,
			Location: a.loc,
		})
	default:
		return fmt.Errorf("unknown export format %q (want csv or ics)", format)
	}
}

func (a *app) refresher() *source.Refresher {
	sources := make([]source.Source, 0, len(a.cfg.Sources))
	for _, s := range a.cfg.Sources {
		if s.URL == "" {
			continue
		}
		id := s.ID
		if id == "" {
			id = s.Name
		}
		if id == "" {
			id = s.URL
		}
		sources = append(sources, source.Source{ID: id, URL: s.URL})
	}
	return source.NewRefresher(source.NewFetcher(a.cfg.CacheDir), sources, a.svc, a.sheetOpts)
}

func serve(ctx context.Context, a *app) error {
	if len(a.cfg.Sources) > 0 {
		refresher := a.refresher()
		if err := refresher.Run(ctx); err != nil {
			appLog.Error("initial source refresh failed", err)
		}
		c := cron.New(cron.WithLocation(a.loc))
		if _, err := c.AddFunc(a.cfg.RefreshCron, func() {
			if err := refresher.Run(ctx); err != nil {
				appLog.Error("source refresh failed", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid refresh cron %q: %w", a.cfg.RefreshCron, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	if a.cfg.Notify.Enabled {
		var n notify.Notifier = notify.LogNotifier{}
		if a.cfg.Notify.SlackWebhookURL != "" {
			n = notify.Multi{n, notify.SlackNotifier{WebhookURL: a.cfg.Notify.SlackWebhookURL}}
		}
		d := notify.NewDispatcher(a.svc, n, notify.DispatcherOptions{
			Spec: a.cfg.Notify.Cron,
			Plan: a.planOpts,
		})
		if err := d.Start(); err != nil {
			return err
		}
		defer d.Stop()
	}

	srv := web.NewServer(a.cfg, a.svc, web.Options{
		Sheet:    a.sheetOpts,
		Plan:     a.planOpts,
		Location: a.loc,
	})
	err := srv.Serve(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
