package handlers

import (
	"context"
	"log"
	"net/http"

	"doEaseAPI/internal/types/notification"
	"doEaseAPI/services"
)

// SweepHandler exposes the scheduled sweeps as HTTP functions. Caller
// authorization is applied by middleware.SchedulerOnly on the route.
type SweepHandler struct {
	sweepService *services.SweepService
}

func NewSweepHandler(sweepService *services.SweepService) *SweepHandler {
	return &SweepHandler{
		sweepService: sweepService,
	}
}

// POST /functions/v1/check-streaks
func (h *SweepHandler) CheckStreaks(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "check-streaks", h.sweepService.CheckStreaks)
}

// POST /functions/v1/send-task-reminders
func (h *SweepHandler) SendTaskReminders(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "send-task-reminders", h.sweepService.SendTaskReminders)
}

// run waits for the shared sweep; the service bounds its duration and records
// its metrics.
func (h *SweepHandler) run(w http.ResponseWriter, r *http.Request, name string, sweep func(context.Context) (*notification.SweepResult, error)) {
	result, err := sweep(r.Context())
	if err != nil {
		log.Printf("General error in %s function: %v", name, err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
