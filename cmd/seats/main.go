package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/ultimate-ticket/services/seats/internal/app"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/clock"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/config"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/events"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/notify"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/sequence"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/storage/memory"
	"github.com/cimillas/ultimate-ticket/services/seats/internal/storage/postgres"
	transporthttp "github.com/cimillas/ultimate-ticket/services/seats/internal/transport/http"
	"github.com/cimillas/ultimate-ticket/services/seats/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// repository is everything the services need from a store.
type repository interface {
	app.HoldRepository
	app.BookingRepository
	app.CancellationRepository
	app.ReaperRepository
	app.CascadeRepository
	app.WaitlistRepository
	app.AdminRepository
	MaxEntrySeq(ctx context.Context) (uint64, error)
	Ping(ctx context.Context) error
}

func main() {
	cfg, envPath, err := config.Load()
	if err != nil {
		// The logger level comes from config, so this one goes to stderr.
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if envPath != "" {
		logger.Info("loaded env file", zap.String("path", envPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := openRepository(ctx, cfg, logger)
	defer closeRepo()

	seq := sequence.New(0)
	highest, err := repo.MaxEntrySeq(ctx)
	if err != nil {
		logger.Fatal("read waitlist sequence", zap.Error(err))
	}
	seq.Reset(highest)

	fairness, err := app.ParseFairness(cfg.Waitlist.Fairness)
	if err != nil {
		logger.Fatal("parse waitlist fairness", zap.Error(err))
	}
	policy := app.WaitlistPolicy{
		OfferWindow:     cfg.Waitlist.OfferWindow,
		MaxMissedOffers: cfg.Waitlist.MaxMissedOffers,
		Fairness:        fairness,
	}

	logNotifier := notify.NewLog(logger)
	offerNotifiers := []app.OfferNotifier{logNotifier}
	releaseObservers := []app.ReleaseObserver{logNotifier}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = rdb.Close() }()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, offers will only be logged", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			rn := notify.NewRedisNotifier(rdb)
			offerNotifiers = append(offerNotifiers, rn)
			releaseObservers = append(releaseObservers, rn)
		}
		cancel()
	}

	var outbox *events.Outbox
	if cfg.Outbox.Dir != "" {
		outbox, err = events.OpenOutbox(cfg.Outbox.Dir, logger)
		if err != nil {
			logger.Fatal("open outbox", zap.String("dir", cfg.Outbox.Dir), zap.Error(err))
		}
		defer func() { _ = outbox.Close() }()
		offerNotifiers = append(offerNotifiers, outbox)
		releaseObservers = append(releaseObservers, outbox)
	}

	clk := clock.NewSystem()
	cascader := app.NewCascader(repo, clk, logger.Named("cascade"), policy,
		app.WithOfferNotifiers(offerNotifiers...),
		app.WithReleaseObservers(releaseObservers...),
	)
	reaper := app.NewReaper(repo, clk, logger.Named("reaper"), cascader, seq, policy,
		app.WithReaperInterval(cfg.Reaper.Interval),
		app.WithReaperBatch(cfg.Reaper.Batch),
		app.WithReconciler(cascader),
	)
	holdSvc := app.NewHoldService(repo, clk, logger.Named("holds"),
		app.WithHoldTTL(cfg.Holds.TTL),
		app.WithMaxHoldTTL(cfg.Holds.MaxTTL),
		app.WithReclaimer(reaper),
	)
	bookingSvc := app.NewBookingService(repo, clk, logger.Named("booking"), reaper)
	cancelSvc := app.NewCancellationService(repo, clk, logger.Named("cancellation"), cascader)
	waitlistSvc := app.NewWaitlistService(repo, clk, logger.Named("waitlist"), bookingSvc, cascader, seq)
	adminSvc := app.NewAdminService(repo, clk, logger.Named("admin"))

	go reaper.Start(ctx)
	go cascader.Run(ctx)

	if outbox != nil && len(cfg.Outbox.KafkaBrokers) > 0 {
		sender := events.NewKafkaSender(cfg.Outbox.KafkaBrokers, cfg.Outbox.KafkaTopic)
		defer func() { _ = sender.Close() }()
		relay := events.NewRelay(outbox, sender, logger.Named("relay"),
			events.WithRelayInterval(cfg.Outbox.RelayInterval),
		)
		go relay.Start(ctx)
	}

	limiter := transporthttp.NewRateLimiter(cfg.Limits.RPS, cfg.Limits.Burst)
	limiter.StartJanitor(ctx)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Holds:       holdSvc,
		Releases:    holdSvc,
		Confirms:    bookingSvc,
		Allocations: cancelSvc,
		Waitlist:    waitlistSvc,
		Events:      adminSvc,
		Resources:   adminSvc,
	}, transporthttp.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     limiter,
		Ping:        repo.Ping,
		Logger:      logger.Named("http"),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("seats listening", zap.String("port", cfg.Server.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	stop()
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// openRepository connects to Postgres when a URL is configured and falls back
// to the in-memory store otherwise.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository, func()) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return memory.NewStore(), func() {}
	}

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		logger.Fatal("db ping", zap.Error(err))
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		pool.Close()
		logger.Fatal("apply migrations", zap.Error(err))
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("names", applied))
	}
	return postgres.NewStore(pool), pool.Close
}
