package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"doEaseAPI/internal/types/clerk"
	"doEaseAPI/internal/types/profile"
	"doEaseAPI/services"
)

const (
	maxWebhookBody      = int64(65536)
	webhookTolerance    = 5 * time.Minute
	webhookSecretPrefix = "whsec_"
)

// ProfileSyncer is the part of the profile store the identity webhook writes to.
type ProfileSyncer interface {
	SyncFromIdentity(ctx context.Context, clerkID, username, email string) (*profile.Profile, error)
	DeleteByClerkID(ctx context.Context, clerkID string) error
}

// WebhookHandler keeps profiles in step with Clerk users. Requests are
// signed by Clerk's delivery service (Svix); an empty secret disables the
// check for local development.
type WebhookHandler struct {
	profiles ProfileSyncer
	secret   []byte
	now      func() time.Time
}

func NewWebhookHandler(profiles ProfileSyncer, secret string) (*WebhookHandler, error) {
	h := &WebhookHandler{profiles: profiles, now: time.Now}
	if secret == "" {
		log.Println("Warning: CLERK_WEBHOOK_SECRET not set, skipping webhook signature verification")
		return h, nil
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, webhookSecretPrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	h.secret = key
	return h, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		log.Printf("Invalid webhook signature: %v", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerk.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		err = h.handleUserUpserted(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}
	if err != nil {
		log.Printf("Error handling %s: %v", event.Type, err)
		respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserUpserted(ctx context.Context, data json.RawMessage) error {
	var userData clerk.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == "" {
		return errors.New("user data has no id")
	}

	p, err := h.profiles.SyncFromIdentity(ctx, userData.ID, userData.DisplayName(), userData.PrimaryEmail())
	if err != nil {
		return err
	}

	log.Printf("Successfully synced profile %s (Clerk ID: %s)", p.UserID, userData.ID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.profiles.DeleteByClerkID(ctx, userData.ID)
	if errors.Is(err, services.ErrProfileNotFound) {
		log.Printf("Delete for unknown Clerk ID %s ignored", userData.ID)
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("Successfully deleted profile: Clerk ID: %s", userData.ID)
	return nil
}

// verify checks the svix-signature header: base64 HMAC-SHA256 over
// "id.timestamp.body", possibly several space-separated "v1,<sig>" entries.
func (h *WebhookHandler) verify(header http.Header, body []byte) error {
	if h.secret == nil {
		return nil
	}

	id := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	sigs := header.Get("svix-signature")
	if id == "" || ts == "" || sigs == "" {
		return errors.New("missing signature headers")
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q", ts)
	}
	if d := h.now().Sub(time.Unix(sec, 0)); d > webhookTolerance || d < -webhookTolerance {
		return errors.New("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
