package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Message is a rendered notice ready for delivery.
type Message struct {
	ID        string        `json:"id"`
	Recipient string        `json:"recipient"`
	Text      string        `json:"text"`
	Link      string        `json:"link"`
	Notice    BookingNotice `json:"notice"`
}

// Channel delivers a rendered message somewhere.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// LogChannel writes the deep link to the log. It is the default when no
// webhook is configured.
type LogChannel struct {
	logger zerolog.Logger
}

func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(_ context.Context, msg Message) error {
	c.logger.Info().
		Str("notification_id", msg.ID).
		Int64("slot_id", msg.Notice.SlotID).
		Str("doctor_id", msg.Notice.DoctorID).
		Str("link", msg.Link).
		Msg("booking notice")
	return nil
}

// ---------------------------------------------------------------------------
// Webhook channel
// ---------------------------------------------------------------------------

const SignatureHeader = "X-Signature"

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(signature))
}

type WebhookOption func(*WebhookChannel)

func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookChannel) { w.httpClient = c }
}

// WebhookChannel POSTs each message as JSON to a relay that forwards it to
// WhatsApp.
type WebhookChannel struct {
	url        string
	secret     string
	httpClient *http.Client
}

func NewWebhookChannel(url, secret string, opts ...WebhookOption) *WebhookChannel {
	w := &WebhookChannel{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-ID", msg.ID)
	if w.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+SignPayload(payload, w.secret))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
