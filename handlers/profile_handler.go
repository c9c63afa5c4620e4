package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"doEaseAPI/internal/types/profile"
	"doEaseAPI/middleware"
	"doEaseAPI/services"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// GET /api/v1/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.profileService.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// PUT /api/v1/profile/notifications
func (h *ProfileHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req profile.UpdateNotificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EmailNotificationsEnabled == nil {
		respondWithError(w, http.StatusBadRequest, "Request body must include 'emailNotificationsEnabled'")
		return
	}

	p, err := h.profileService.UpdateNotifications(ctx, clerkID, *req.EmailNotificationsEnabled)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}
