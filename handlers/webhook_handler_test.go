package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doEaseAPI/internal/types/profile"
	"doEaseAPI/services"
)

type fakeSyncer struct {
	synced  map[string][2]string
	deleted []string
	err     error
}

func (f *fakeSyncer) SyncFromIdentity(ctx context.Context, clerkID, username, email string) (*profile.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.synced == nil {
		f.synced = map[string][2]string{}
	}
	f.synced[clerkID] = [2]string{username, email}
	return &profile.Profile{UserStreakState: profile.UserStreakState{UserID: uuid.New()}, ClerkID: clerkID}, nil
}

func (f *fakeSyncer) DeleteByClerkID(ctx context.Context, clerkID string) error {
	if clerkID == "user_missing" {
		return services.ErrProfileNotFound
	}
	f.deleted = append(f.deleted, clerkID)
	return f.err
}

var testKey = []byte("super-secret-signing-key")

func signedRequest(t *testing.T, body string, at time.Time) *http.Request {
	t.Helper()
	id := "msg_2abc"
	ts := strconv.FormatInt(at.Unix(), 10)

	mac := hmac.New(sha256.New, testKey)
	mac.Write([]byte(id + "." + ts + "." + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", "v1,bm90LXRoaXMtb25l v1,"+sig)
	return req
}

func newTestWebhookHandler(t *testing.T, syncer ProfileSyncer, now time.Time) *WebhookHandler {
	t.Helper()
	h, err := NewWebhookHandler(syncer, "whsec_"+base64.StdEncoding.EncodeToString(testKey))
	require.NoError(t, err)
	h.now = func() time.Time { return now }
	return h
}

const userCreated = `{"type":"user.created","object":"event","data":{"id":"user_1","username":"","first_name":"Ana","last_name":"Petrova","primary_email_address_id":"idn_2","email_addresses":[{"id":"idn_1","email_address":"old@example.com"},{"id":"idn_2","email_address":"ana@example.com"}]}}`

func TestWebhook_UserCreatedSyncsProfile(t *testing.T) {
	now := time.Now()
	syncer := &fakeSyncer{}
	h := newTestWebhookHandler(t, syncer, now)

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest(t, userCreated, now))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]string{"AnaPetrova", "ana@example.com"}, syncer.synced["user_1"])
}

func TestWebhook_UserDeleted(t *testing.T) {
	now := time.Now()
	syncer := &fakeSyncer{}
	h := newTestWebhookHandler(t, syncer, now)

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest(t, `{"type":"user.deleted","data":{"id":"user_1"}}`, now))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"user_1"}, syncer.deleted)

	// Deleting an unknown user is acknowledged so Clerk stops retrying.
	rr = httptest.NewRecorder()
	h.HandleClerkWebhook(rr, signedRequest(t, `{"type":"user.deleted","data":{"id":"user_missing"}}`, now))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhook_Rejections(t *testing.T) {
	now := time.Now()

	t.Run("tampered body", func(t *testing.T) {
		syncer := &fakeSyncer{}
		req := signedRequest(t, userCreated, now)
		req.Body = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Replace(userCreated, "ana@", "eve@", 1))).Body

		rr := httptest.NewRecorder()
		newTestWebhookHandler(t, syncer, now).HandleClerkWebhook(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, syncer.synced)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		syncer := &fakeSyncer{}
		rr := httptest.NewRecorder()
		newTestWebhookHandler(t, syncer, now).HandleClerkWebhook(rr, signedRequest(t, userCreated, now.Add(-10*time.Minute)))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, syncer.synced)
	})

	t.Run("missing headers", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(userCreated))
		newTestWebhookHandler(t, &fakeSyncer{}, now).HandleClerkWebhook(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		rr := httptest.NewRecorder()
		syncer := &fakeSyncer{err: errors.New("db down")}
		newTestWebhookHandler(t, syncer, now).HandleClerkWebhook(rr, signedRequest(t, userCreated, now))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestWebhook_UnsignedWhenSecretUnset(t *testing.T) {
	syncer := &fakeSyncer{}
	h, err := NewWebhookHandler(syncer, "")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{"type":"session.created","data":{}}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, syncer.synced)
}

func TestNewWebhookHandler_BadSecret(t *testing.T) {
	_, err := NewWebhookHandler(&fakeSyncer{}, "whsec_***")
	assert.Error(t, err)
}
