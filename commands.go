package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"doEaseAPI/config"
	"doEaseAPI/handlers"
	"doEaseAPI/internal/types/notification"
	"doEaseAPI/internal/workers"
	"doEaseAPI/middleware"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "doease",
		Short: "DoEase task and streak API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			return err
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled function endpoints",
		RunE:  runServe,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduled sweep against the database and print its summary",
	}
	sweepStreaksCmd = &cobra.Command{
		Use:   "streaks",
		Short: "Reset broken streaks and notify their owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), "check-streaks")
		},
	}
	sweepRemindersCmd = &cobra.Command{
		Use:   "reminders",
		Short: "Send reminders for tasks starting soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), "send-task-reminders")
		},
	}
)

func init() {
	sweepCmd.AddCommand(sweepStreaksCmd, sweepRemindersCmd)
	rootCmd.AddCommand(serveCmd, sweepCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	middleware.InitPrometheus()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewIPRateLimiter(rate.Limit(10), 20)
	go limiter.Cleanup(ctx, 3*time.Minute)

	webhookHandler, err := handlers.NewWebhookHandler(a.profileService, cfg.ClerkWebhookSecret)
	if err != nil {
		return err
	}

	handler := newRouter(routerDeps{
		ping:         a.dbPool.Ping,
		verify:       middleware.ClerkVerifier,
		limiter:      limiter,
		metricsUser:  cfg.MetricsUser,
		metricsPass:  cfg.MetricsPass,
		callerHeader: cfg.SchedulerCallerHeader,
		caller:       cfg.SchedulerCaller,
		sweeps:       handlers.NewSweepHandler(a.sweepService),
		webhooks:     webhookHandler,
		tasks:        handlers.NewTaskHandler(a.taskService),
		profiles:     handlers.NewProfileHandler(a.profileService),
	})

	var scheduler *workers.Scheduler
	if cfg.InternalScheduler {
		scheduler = workers.NewScheduler(
			workers.Job{
				Name:     "check-streaks",
				Interval: cfg.StreakSweepInterval,
				Run:      scheduledSweep("check-streaks", a.sweepService.CheckStreaks),
			},
			workers.Job{
				Name:     "send-task-reminders",
				Interval: cfg.ReminderSweepInterval,
				Run:      scheduledSweep("send-task-reminders", a.sweepService.SendTaskReminders),
			},
		)
		scheduler.Start(ctx)
	}

	port := ":" + cfg.Port
	server := http.Server{
		Addr:        port,
		Handler:     handler,
		ReadTimeout: 5 * time.Second,
		// Sweeps may run for up to two minutes.
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}

func scheduledSweep(name string, sweep func(context.Context) (*notification.SweepResult, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := sweep(ctx)
		if err != nil {
			return err
		}
		log.Printf("%s: %s", name, res.Message)
		return nil
	}
}

func runSweep(ctx context.Context, name string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if ctx == nil {
		ctx = context.Background()
	}

	var res *notification.SweepResult
	switch name {
	case "check-streaks":
		res, err = a.sweepService.CheckStreaks(ctx)
	case "send-task-reminders":
		res, err = a.sweepService.SendTaskReminders(ctx)
	default:
		return fmt.Errorf("unknown sweep %q", name)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
