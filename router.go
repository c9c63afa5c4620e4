package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"doEaseAPI/handlers"
	"doEaseAPI/middleware"
)

type routerDeps struct {
	ping        func(ctx context.Context) error
	verify      middleware.TokenVerifier
	limiter     *middleware.IPRateLimiter
	metricsUser string
	metricsPass string

	callerHeader string
	caller       string

	sweeps   *handlers.SweepHandler
	webhooks *handlers.WebhookHandler
	tasks    *handlers.TaskHandler
	profiles *handlers.ProfileHandler
}

func newRouter(d routerDeps) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(d.metricsUser, d.metricsPass)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := d.ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "doease-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", d.webhooks.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// SCHEDULED FUNCTIONS (CALLED BY THE DATABASE SCHEDULER)
	// -------------------------------------------------------------------------
	functions := r.PathPrefix("/functions/v1").Subrouter()
	functions.Use(middleware.FunctionCORS)
	functions.Use(middleware.SchedulerOnly(d.callerHeader, d.caller))

	functions.HandleFunc("/check-streaks", d.sweeps.CheckStreaks).Methods("POST", "GET", "OPTIONS")
	functions.HandleFunc("/send-task-reminders", d.sweeps.SendTaskReminders).Methods("POST", "GET", "OPTIONS")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(d.limiter.Middleware)
	protected.Use(middleware.AuthMiddleware(d.verify))

	protected.HandleFunc("/profile", d.profiles.GetProfile).Methods("GET")
	protected.HandleFunc("/profile/notifications", d.profiles.UpdateNotifications).Methods("PUT")

	protected.HandleFunc("/tasks", d.tasks.ListTasks).Methods("GET")
	protected.HandleFunc("/tasks", d.tasks.CreateTask).Methods("POST")
	protected.HandleFunc("/tasks/analytics", d.tasks.GetAnalytics).Methods("GET")
	protected.HandleFunc("/tasks/{id}/complete", d.tasks.SetCompleted).Methods("PUT")
	protected.HandleFunc("/tasks/{id}", d.tasks.DeleteTask).Methods("DELETE")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)
	withCORS := corsHandler(r)

	// Scheduled functions answer their own preflight with a bare 200.
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/functions/") {
			r.ServeHTTP(w, req)
			return
		}
		withCORS.ServeHTTP(w, req)
	})
}
