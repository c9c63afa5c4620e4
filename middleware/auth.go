package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"

	"doEaseAPI/internal/session"
)

type contextKey string

const ClerkIDKey contextKey = "clerkID"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier func(ctx context.Context, token string) (string, error)

// ClerkVerifier verifies Clerk session JWTs. clerk.SetKey must have been
// called before the first request.
func ClerkVerifier(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

var (
	errMissingHeader = errors.New("Authorization header required")
	errBadFormat     = errors.New("Invalid authorization format. Use 'Bearer <token>'")
)

// AuthMiddleware authenticates the caller with verify. Each request walks its
// own session machine from Anonymous to Authenticated; anything that does not
// end Authenticated is rejected with 401.
func AuthMiddleware(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := session.NewMachine(nil)

			token, err := bearerToken(r)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			m.Dispatch(session.Event{Kind: session.TokenPresented})

			subject, err := verify(r.Context(), token)
			if err != nil || subject == "" {
				if err == nil {
					err = errors.New("token has no subject")
				}
				m.Dispatch(session.Event{Kind: session.Rejected, Err: err})
			} else {
				m.Dispatch(session.Event{Kind: session.Verified, Subject: subject})
			}

			clerkID, ok := m.Subject()
			if !ok {
				log.Printf("Token verification failed: %v", m.Err())
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClerkIDKey, clerkID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || strings.TrimSpace(token) == "" {
		return "", errBadFormat
	}
	return token, nil
}

// GetClerkID extracts the authenticated Clerk user ID from context.
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

// WithClerkID returns ctx carrying clerkID, as AuthMiddleware would.
func WithClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, ClerkIDKey, clerkID)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
