package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/navikt/zagenda/internal/api"
	"github.com/navikt/zagenda/internal/calendar"
	"github.com/navikt/zagenda/internal/config"
	"github.com/navikt/zagenda/internal/logging"
	"github.com/navikt/zagenda/internal/repository"
	"github.com/navikt/zagenda/internal/repository/memory"
	"github.com/navikt/zagenda/internal/service"
	"github.com/navikt/zagenda/internal/source"
	"github.com/navikt/zagenda/internal/utils"
	"github.com/navikt/zagenda/internal/web"
)

// options holds command-line overrides of the environment configuration
type options struct {
	port       string
	dataURL    string
	mixinURL   string
	detailsURL string
	exportPath string
	icalPath   string
}

// exportTargets names the files a one-shot export writes
type exportTargets struct {
	page string
	ical string
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("zagenda", pflag.ContinueOnError)
	fs.StringVarP(&opts.port, "port", "p", "", "HTTP port (overrides PORT)")
	fs.StringVar(&opts.dataURL, "data", "", "schedule document URL or path (overrides SOURCE_DATA_URL)")
	fs.StringVar(&opts.mixinURL, "mixin", "", "mixin document URL or path (overrides SOURCE_MIXIN_URL)")
	fs.StringVar(&opts.detailsURL, "details", "", "session details document URL or path (overrides SOURCE_DETAILS_URL)")
	fs.StringVar(&opts.exportPath, "export", "", "write a static timeline page to this file and exit")
	fs.StringVar(&opts.icalPath, "ical", "", "write an iCalendar file of the schedule and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs, nil
}

// applyFlags copies explicitly set flags over the loaded configuration
func applyFlags(cfg *config.Config, opts *options, fs *pflag.FlagSet) {
	if fs.Changed("port") {
		cfg.Port = opts.port
	}
	if fs.Changed("data") {
		cfg.Source.DataURL = opts.dataURL
	}
	if fs.Changed("mixin") {
		cfg.Source.MixinURL = opts.mixinURL
	}
	if fs.Changed("details") {
		cfg.Source.DetailsURL = opts.detailsURL
	}
}

func main() {
	opts, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlags(cfg, opts, fs)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	fetcher := source.NewHTTPFetcher(cfg.Source.Timeout, source.RetryPolicy{
		MaxRetries:      cfg.Source.MaxRetries,
		InitialInterval: cfg.Source.InitialInterval,
	}, logger)
	loader := source.NewLoader(fetcher, cfg.Source.DataURL, cfg.Source.MixinURL, logger).
		WithDetails(cfg.Source.DetailsURL)

	if opts.exportPath != "" || opts.icalPath != "" {
		targets := exportTargets{page: opts.exportPath, ical: opts.icalPath}
		if err := export(loader, targets, calendarOptions(cfg), logger); err != nil {
			logger.Error("export failed", zap.Error(err))
			_ = logger.Sync()
			os.Exit(1)
		}
		return
	}

	if err := serve(cfg, loader, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// calendarOptions maps the calendar configuration onto the feed options
func calendarOptions(cfg *config.Config) calendar.Options {
	return calendar.Options{
		Name:        cfg.Calendar.Name,
		Description: cfg.Calendar.Description,
		UIDPrefix:   cfg.Calendar.UIDPrefix,
		AgendaURL:   cfg.Calendar.AgendaURL,
		TimeZone:    cfg.Calendar.TimeZone,
	}
}

// export loads the schedule once and writes the requested files
func export(loader service.Loader, targets exportTargets, calOpts calendar.Options, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	svc := service.NewScheduleService(loader, memory.NewRepository(), logger)
	snapshot, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	if targets.page != "" {
		tl, err := svc.Timeline(ctx)
		if err != nil {
			return err
		}
		if err := writeFile(targets.page, func(w io.Writer) error {
			return web.Export(w, tl, "")
		}); err != nil {
			return err
		}
		logger.Info("exported timeline",
			utils.SafeString("path", targets.page),
			zap.Int("groups", len(tl.Groups)),
			zap.Int("items", len(tl.Items)),
		)
	}

	if targets.ical != "" {
		if err := writeFile(targets.ical, func(w io.Writer) error {
			return calendar.Write(w, snapshot, calOpts)
		}); err != nil {
			return err
		}
		logger.Info("exported calendar", utils.SafeString("path", targets.ical))
	}
	return nil
}

// writeFile creates path and fills it through write
func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// app is the wired HTTP application without its listener
type app struct {
	scheduleService *service.ScheduleService
	webHandler      *web.Handler
	handler         http.Handler
}

// newApp wires the schedule service, the web UI and the API around repo
func newApp(cfg *config.Config, loader service.Loader, repo repository.Repository, logger *zap.Logger) (*app, error) {
	scheduleService := service.NewScheduleService(loader, repo, logger)

	webHandler, err := web.NewHandler(scheduleService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web handler: %w", err)
	}
	webHandler.WithCalendar(calendarOptions(cfg))

	// Register the SSE update callback with the schedule service
	scheduleService.RegisterUpdateCallback(webHandler.NotifyScheduleUpdate)

	mux := api.SetupRoutes(scheduleService, logger)
	webHandler.SetupRoutes(mux)

	return &app{
		scheduleService: scheduleService,
		webHandler:      webHandler,
		handler:         web.WrapMuxWithMiddleware(mux, logger),
	}, nil
}

func serve(cfg *config.Config, loader service.Loader, logger *zap.Logger) error {
	// Initialize the repository using the factory
	repo, err := repository.NewRepository(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}

	// Close Redis connections properly on exit
	if closer, ok := repo.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("error closing Redis connection", zap.Error(err))
			}
		}()
	}

	application, err := newApp(cfg, loader, repo, logger)
	if err != nil {
		return err
	}
	scheduleService := application.scheduleService

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A failed first load is not fatal; pages answer 503 until a refresh succeeds
	if _, err := scheduleService.Refresh(ctx); err != nil {
		logger.Error("initial schedule load failed", zap.Error(err))
	}

	go scheduleService.Run(ctx, cfg.Refresh)

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      application.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable write timeout for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("starting zagenda server",
			zap.String("addr", server.Addr),
			zap.Duration("refresh_interval", cfg.Refresh),
			zap.Bool("redis", cfg.Redis.Enabled),
		)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("error starting server: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down server")

		// First, shutdown the web handler to close SSE connections
		application.webHandler.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("error shutting down server: %w", err)
		}

		logger.Info("server gracefully stopped")
		return nil
	}
}
