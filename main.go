package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/api"
	"dealscope/config"
	"dealscope/entitlement"
	"dealscope/httputil"
	"dealscope/logging"
	"dealscope/scheduler"
	"dealscope/services"
	"dealscope/storage"
	"dealscope/valuation"
	"dealscope/workers"
)

var (
	evaluateID = flag.String("evaluate", "", "Print the evaluation for a property id and exit")
	exportID   = flag.String("export", "", "Archive the evaluation for a property id and exit")
	owner      = flag.String("owner", "", "Owner id used by -evaluate and -export")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, logFile := logging.Must(logging.New(cfg.LogLevel, cfg.LogPath))
	if logFile != nil {
		defer logFile.Close()
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("dealscope exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer sqliteStore.Close()
	logger.Info("sqlite database opened", zap.String("path", cfg.DBPath))

	var offerRepo services.OfferRepository
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		offerRepo = pgStore
		logger.Info("connected to postgres", zap.String("url", maskConnectionString(cfg.DatabaseURL)))
	} else {
		offerRepo = storage.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, offers are kept in memory and lost on restart")
	}

	ent, err := entitlement.NewStatic(cfg.Entitlement)
	if err != nil {
		return fmt.Errorf("entitlements: %w", err)
	}

	clients := httputil.NewClients(cfg.Valuation)
	valuer, err := valuation.New(cfg.Valuation, clients, logger)
	if err != nil {
		return fmt.Errorf("valuation: %w", err)
	}

	var reports services.ReportStore
	if cfg.S3.Enabled() {
		archive, err := storage.NewReportArchive(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("report archive: %w", err)
		}
		reports = archive
		logger.Info("report archive enabled", zap.String("bucket", cfg.S3.Bucket))
	}

	profiles := services.NewProfileService(sqliteStore, logger)
	properties := services.NewPropertyService(sqliteStore, sqliteStore, logger)
	evaluations := services.NewEvaluationService(properties, profiles, valuer, ent, reports, logger)
	offers := services.NewOfferService(offerRepo, properties, ent, logger)

	if _, err := profiles.Seed(ctx, cfg.Profiles); err != nil {
		return fmt.Errorf("seed profiles: %w", err)
	}

	// One-shot commands
	if *evaluateID != "" {
		return evaluateOnce(ctx, evaluations, *evaluateID)
	}
	if *exportID != "" {
		return exportOnce(ctx, evaluations, *exportID)
	}

	deadlines := workers.NewDeadlineWorker(offerRepo, cfg.Scheduler.WindowDays, logger)
	go deadlines.Run(ctx)

	sched := scheduler.New(cfg.Scheduler, deadlines, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	router := api.NewRouter(api.NewHandler(properties, profiles, evaluations, offers, logger), logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Stop SSE streams before draining the server
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("goodbye")
	return nil
}

func evaluateOnce(ctx context.Context, evaluations *services.EvaluationService, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid property id %q: %w", rawID, err)
	}
	ev, err := evaluations.Evaluate(ctx, *owner, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ev)
}

func exportOnce(ctx context.Context, evaluations *services.EvaluationService, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid property id %q: %w", rawID, err)
	}
	link, err := evaluations.Export(ctx, *owner, id)
	if err != nil {
		return err
	}
	fmt.Println(link)
	return nil
}

// maskConnectionString hides the password in a connection URL for logging
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}
