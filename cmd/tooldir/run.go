package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/config"
	"github.com/xxxsen/tooldir/internal/db"
	"github.com/xxxsen/tooldir/internal/handler"
	"github.com/xxxsen/tooldir/internal/job"
	"github.com/xxxsen/tooldir/internal/middleware"
	"github.com/xxxsen/tooldir/internal/repo"
	"github.com/xxxsen/tooldir/internal/schedule"
	"github.com/xxxsen/tooldir/internal/service"
	"github.com/xxxsen/tooldir/internal/verify"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run tooldir server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sqlDB, err := db.Open(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer sqlDB.Close()
			if err := db.ApplyMigrations(ctx, sqlDB); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(ctx, cfg, sqlDB)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	return cmd
}

// codeBackend is the store and throttle pair selected by
// verification.backend, plus an optional cleanup job for it.
type codeBackend struct {
	store    verify.Store
	throttle verify.ThrottleGuard
	cleanup  schedule.Job
	close    func() error
}

func openCodeBackend(ctx context.Context, cfg *config.Config, sqlDB *sql.DB) (*codeBackend, error) {
	v := cfg.Verification
	ttl := time.Duration(v.TTLSeconds) * time.Second
	cooldown := time.Duration(v.CooldownSeconds) * time.Second
	switch v.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return &codeBackend{
			store:    verify.NewRedisStore(client, cfg.Redis.Prefix),
			throttle: verify.NewRedisThrottle(client, cfg.Redis.Prefix),
			close:    client.Close,
		}, nil
	case config.BackendPostgres:
		codes := repo.NewVerificationCodeRepo(sqlDB)
		return &codeBackend{
			store:    codes,
			throttle: codes,
			cleanup:  job.NewVerificationCleanupJob(codes, cooldown),
			close:    func() error { return nil },
		}, nil
	default:
		return &codeBackend{
			store:    verify.NewMemoryStore(v.MemoryCapacity, ttl),
			throttle: verify.NewMemoryThrottle(),
			close:    func() error { return nil },
		}, nil
	}
}

func runServer(ctx context.Context, cfg *config.Config, sqlDB *sql.DB) error {
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("verification_backend", cfg.Verification.Backend),
	)

	backend, err := openCodeBackend(ctx, cfg, sqlDB)
	if err != nil {
		return fmt.Errorf("init verification backend: %w", err)
	}
	defer func() { _ = backend.close() }()

	engine := verify.NewEngine(backend.store, backend.throttle, verify.Config{
		TTL:         time.Duration(cfg.Verification.TTLSeconds) * time.Second,
		Cooldown:    time.Duration(cfg.Verification.CooldownSeconds) * time.Second,
		MaxAttempts: cfg.Verification.MaxAttempts,
	})
	renderer, err := service.NewMailRenderer()
	if err != nil {
		return fmt.Errorf("init mail templates: %w", err)
	}

	userRepo := repo.NewUserRepo(sqlDB)
	feedbackRepo := repo.NewFeedbackRepo(sqlDB)
	dispatcher := service.NewDispatcher(service.NewEmailSender(cfg.Mail), time.Duration(cfg.Mail.TimeoutSeconds)*time.Second)
	codeService := service.NewVerificationService(engine, userRepo, renderer, dispatcher)
	authService := service.NewAuthService(userRepo, codeService, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	feedbackService := service.NewFeedbackService(feedbackRepo, codeService)

	deps := handler.RouterDeps{
		Email:     handler.NewEmailHandler(codeService),
		Auth:      handler.NewAuthHandler(authService),
		Feedback:  handler.NewFeedbackHandler(feedbackService),
		JWTSecret: []byte(cfg.JWTSecret),
		RateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	if backend.cleanup != nil {
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(backend.cleanup, cfg.CleanupCron); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	web, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := web.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
