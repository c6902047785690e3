package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
)

// Kind identifies which notification a payload carries.
type Kind string

const (
	KindActivity Kind = "activity"
	KindFinal    Kind = "final"
	KindError    Kind = "error"
)

// Payload is the JSON body of every callback. Result holds a single entry
// for activity callbacks and every entry for the final callback.
type Payload struct {
	ID      string          `json:"id"`
	Request request.Request `json:"request"`
	Result  map[string]any  `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// IdempotencyKey is stable across retries of the same notification.
func (p Payload) IdempotencyKey(kind Kind) string {
	if kind == KindActivity {
		for name := range p.Result {
			return p.ID + ":" + string(kind) + ":" + name
		}
	}
	return p.ID + ":" + string(kind)
}

// Notifier delivers one payload to url.
type Notifier interface {
	Notify(ctx context.Context, url string, kind Kind, payload Payload) error
}

// NewNotifier builds the HTTP notifier from configuration.
func NewNotifier(cfg *config.Config) Notifier {
	timeout := 10 * time.Second
	userAgent := "mediaflow"
	if cfg != nil {
		if cfg.Callback.RequestTimeout > 0 {
			timeout = time.Duration(cfg.Callback.RequestTimeout) * time.Second
		}
		if cfg.Callback.UserAgent != "" {
			userAgent = cfg.Callback.UserAgent
		}
	}
	return &HTTPNotifier{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// HTTPNotifier POSTs JSON payloads.
type HTTPNotifier struct {
	client    *http.Client
	userAgent string
}

// NewHTTPNotifier wraps client (http.DefaultClient when nil).
func NewHTTPNotifier(client *http.Client, userAgent string) *HTTPNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPNotifier{client: client, userAgent: userAgent}
}

// Notify sends payload. Network failures and 5xx/429 responses are tagged
// transient so the caller's retry policy may try again; other non-2xx
// responses are permanent. Every failure unwraps to *services.CallbackDeliveryError.
func (n *HTTPNotifier) Notify(ctx context.Context, url string, kind Kind, payload Payload) error {
	if n == nil || n.client == nil || strings.TrimSpace(url) == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &services.CallbackDeliveryError{URL: url, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &services.CallbackDeliveryError{URL: url, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	req.Header.Set("Idempotency-Key", payload.IdempotencyKey(kind))
	req.Header.Set("X-Mediaflow-Event", string(kind))
	req.Header.Set("X-Mediaflow-Job", payload.ID)

	resp, err := n.client.Do(req)
	if err != nil {
		delivery := &services.CallbackDeliveryError{URL: url, Err: err}
		return services.Wrap(services.ErrTransient, "callback", string(kind), "", delivery)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		delivery := &services.CallbackDeliveryError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return services.Wrap(services.ErrTransient, "callback", string(kind), "", delivery)
		}
		return delivery
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Notify(context.Context, string, Kind, Payload) error { return nil }
