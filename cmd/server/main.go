package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"typeduel/internal/cache"
	"typeduel/internal/config"
	"typeduel/internal/logging"
	"typeduel/internal/metrics"
	"typeduel/internal/repository"
	"typeduel/internal/service"
	"typeduel/internal/transport/rest"
	"typeduel/internal/transport/ws"
)

const sweepInterval = time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server_exit", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Dir = cfg.LogDir
	logCfg.MaxSizeMB = cfg.LogMaxSizeMB
	logCfg.MaxBackups = cfg.LogMaxBackups
	logCfg.MaxAgeDays = cfg.LogMaxAgeDays
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.OpenStore(ctx, repository.StoreOptions{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		MongoURI:    cfg.MongoURI,
		MongoDB:     cfg.MongoDB,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("store_connected", slog.String("driver", cfg.StoreDriver))

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURI)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("redis_connected")

	// Initialize caches
	leaderboard := cache.NewLeaderboardCache(rdb)
	pending := cache.NewPendingOutcomeQueue(rdb)
	userCache := cache.NewUserCache(rdb, 0)

	collectors := metrics.New()

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.CookieName, store)
	authSvc.SetUserCache(userCache)

	arenaCfg := service.DefaultArenaConfig()
	arenaCfg.LimitSec = int(cfg.MatchLimit / time.Second)
	arenaCfg.StartDelay = cfg.MatchLead
	arenaCfg.InactivityTimeout = cfg.InactivityTimeout
	arenaCfg.DeadlineGrace = cfg.DeadlineGrace
	arenaCfg.EloK = float64(cfg.EloK)
	arenaCfg.XP.Min = cfg.XPMin
	arenaCfg.XP.Max = cfg.XPMax
	arenaCfg.CommitWorkers = cfg.CommitWorkers

	arena := service.NewArenaService(arenaCfg, clockwork.NewRealClock(), store, service.NewWordChallengeGenerator(), logger)
	arena.SetPendingQueue(pending)
	arena.SetLeaderboard(leaderboard)
	arena.SetUserCache(userCache)
	arena.SetMetrics(collectors)

	soloSvc := service.NewSoloService(store, arenaCfg.XP, clockwork.NewRealClock(), logger)
	soloSvc.SetUserCache(userCache)
	soloSvc.SetMetrics(collectors)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	wsHub := ws.NewHub(logger)
	arena.SetBroadcaster(wsHub)
	wsHandler := ws.NewHandler(wsHub, authSvc, arena, cfg.CORSAllowedOrigins, logger)

	sched, err := service.NewScheduler(nil, logger)
	if err != nil {
		return err
	}
	if err := sched.StartInactivityMonitor(arena, sweepInterval); err != nil {
		return fmt.Errorf("schedule inactivity monitor: %w", err)
	}
	if err := sched.StartOutcomeRetry(arena, cfg.RetryInterval, arenaCfg.CommitTimeout); err != nil {
		return fmt.Errorf("schedule outcome retry: %w", err)
	}
	sched.Start()

	router := rest.NewRouter(&rest.Container{
		AuthService:    authSvc,
		Arena:          arena,
		Store:          store,
		Leaderboard:    leaderboard,
		WSHub:          wsHub,
		WSHandler:      wsHandler,
		Solo:           soloSvc,
		Metrics:        collectors,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_listening",
			slog.String("addr", srv.Addr),
			slog.Int("limit_sec", arenaCfg.LimitSec),
			slog.Float64("elo_k", arenaCfg.EloK),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if schedErr := sched.Shutdown(); schedErr != nil {
			logger.Warn("scheduler_shutdown_failed", slog.Any("err", schedErr))
		}
		// closing the hub ends every socket; their forfeits must be
		// scheduled before the commit workers are drained
		wsHub.Close()
		wsHandler.Wait()
		arena.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server_exited")
	return nil
}
