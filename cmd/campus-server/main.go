package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/campushq/campus/pkg/api"
	"github.com/campushq/campus/pkg/auth"
	"github.com/campushq/campus/pkg/config"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/middleware"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
	"github.com/campushq/campus/pkg/schools"
	"github.com/campushq/campus/pkg/storage"
	"github.com/campushq/campus/pkg/users"
)

const invitationCleanupSchedule = "17 3 * * *"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := storage.RunMigrations(ctx, db, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Stores and services.
	userStore := users.NewPostgresStore(db)
	roleStore := rbac.NewPostgresStore(db)
	schoolStore := schools.NewPostgresStore(db)
	memberStore := members.NewPostgresStore(db, roleStore)

	provisioner := rbac.NewProvisioner(roleStore, logger)
	// Registration depends on the permission catalog and the global admin
	// role, so refuse to start without them.
	if err := provisioner.EnsureSystemCatalog(ctx); err != nil {
		log.Fatalf("Failed to provision permission catalog: %v", err)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	schoolSvc := schools.NewService(schoolStore, memberStore, userStore, roleStore, provisioner, logger, metrics)
	memberSvc := members.NewService(memberStore, roleStore, userStore, logger)
	tokens := auth.NewTokenManager(userStore)

	// Redis is optional; without it registration runs unthrottled.
	var redisClient *redis.Client
	var limiter *middleware.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).
				Warn("redis unreachable at startup, rate limiting degraded")
		}
		limiter = middleware.NewRateLimiter(redisClient, cfg.Redis.RegistrationsPerWindow, cfg.Redis.Window, logger)
		defer redisClient.Close()
	}

	server := api.NewServer(api.Deps{
		Schools:         schoolSvc,
		Memberships:     memberSvc,
		Roles:           roleStore,
		SchoolStore:     schoolStore,
		MembershipStore: memberStore,
		Verify:          tokens.Verify,
		RateLimiter:     limiter,
		Logger:          logger,
		Metrics:         metrics,
	})

	// Expired invitation cleanup runs off-peak.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(invitationCleanupSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := memberSvc.CleanupExpiredInvitations(jobCtx); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).
				Error("invitation cleanup failed")
		}
	}); err != nil {
		log.Fatalf("Failed to schedule invitation cleanup: %v", err)
	}
	scheduler.Start()

	// Health and metrics on a separate port for probes.
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("campus server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	statsDone := make(chan struct{})
	if metrics != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.CollectDBStats(db)
				case <-statsDone:
					return
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	close(statsDone)
	<-scheduler.Stop().Done()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("api server shutdown: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("health server shutdown: %v", err)
	}

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
