package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrBadStatus is matched by errors for non-2xx responses from the provider.
var ErrBadStatus = errors.New("email provider returned non-2xx status")

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("email provider returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrBadStatus }

type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type Config struct {
	APIKey     string
	Endpoint   string
	From       string
	RatePerSec float64
	HTTPClient *http.Client
}

// ResendClient sends transactional email through the Resend HTTP API. Each
// Send makes at most one request; nothing is retried.
type ResendClient struct {
	apiKey     string
	endpoint   string
	from       string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[string]
}

// NewResendClient returns nil when no API key is configured, which callers
// treat as email being disabled.
func NewResendClient(cfg Config) *ResendClient {
	if cfg.APIKey == "" {
		log.Println("Email: RESEND_API_KEY not set, email sending disabled")
		return nil
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = max(1, int(cfg.RatePerSec))
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "resend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isProviderHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Email: circuit breaker %s changed from %s to %s", name, from, to)
		},
	})

	return &ResendClient{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		from:       cfg.From,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
	}
}

// Send delivers one HTML email to a single recipient and returns the
// provider's message id.
func (c *ResendClient) Send(ctx context.Context, to, subject, html string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("email rate limiter: %w", err)
	}

	return c.breaker.Execute(func() (string, error) {
		return c.post(ctx, Message{
			From:    c.from,
			To:      []string{to},
			Subject: subject,
			HTML:    html,
		})
	})
}

func (c *ResendClient) post(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read email response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	var out sendResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			log.Printf("Email: could not decode provider response: %v", err)
		}
	}
	return out.ID, nil
}

// isProviderHealthy keeps client errors such as a rejected address from
// tripping the breaker. Only transport failures, 429 and 5xx count.
func isProviderHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}
