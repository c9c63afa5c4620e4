package main

import (
	"context"
	"fmt"
	"log"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"doEaseAPI/config"
	"doEaseAPI/internal/email"
	"doEaseAPI/internal/streak"
	"doEaseAPI/middleware"
	"doEaseAPI/services"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	dbPool *pgxpool.Pool

	profileService *services.ProfileService
	taskService    *services.TaskService
	sweepService   *services.SweepService
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	if cfg.ClerkSecretKey != "" {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")
	} else {
		log.Println("Warning: CLERK_SECRET_KEY is not set, user routes will reject every token")
	}

	dbPool, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	evaluator := streak.NewEvaluator(cfg.StreakLocation, nil)
	profileService := services.NewProfileService(dbPool, evaluator)
	taskService := services.NewTaskService(dbPool, profileService)

	// A nil *ResendClient must not end up inside the Mailer interface.
	var mailer services.Mailer
	if cfg.EmailEnabled() {
		mailer = email.NewResendClient(email.Config{
			APIKey:     cfg.ResendAPIKey,
			Endpoint:   cfg.ResendAPIURL,
			From:       cfg.ResendFromEmail,
			RatePerSec: cfg.ResendRatePerSec,
		})
		log.Println("Resend email client initialized successfully")
	} else {
		log.Println("Warning: RESEND_API_KEY is not set, sweeps will not send email")
	}

	sweepService := services.NewSweepService(profileService, taskService, evaluator, mailer, cfg.SweepConcurrency)
	sweepService.RecordWith(middleware.RecordSweep)

	log.Printf("Streak calendar timezone: %s", evaluator.Location())

	return &app{
		cfg:            cfg,
		dbPool:         dbPool,
		profileService: profileService,
		taskService:    taskService,
		sweepService:   sweepService,
	}, nil
}

func connectDB(dbURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to database")
	return dbPool, nil
}

func (a *app) close() {
	log.Println("Closing database connection pool...")
	a.dbPool.Close()
}
