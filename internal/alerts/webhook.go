package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// DeliveryHeader carries a fresh id per webhook POST so receivers can drop duplicates.
const DeliveryHeader = "X-Tareas-Delivery"

var webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tareas_webhook_deliveries_total",
	Help: "Alert webhook POSTs, by result",
}, []string{"result"})

// WebhookPayload is the JSON body posted for a fired alert.
type WebhookPayload struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	AlertDate   string `json:"alertDate"`
	TriggeredAt string `json:"triggeredAt"`
}

type WebhookOpts struct {
	Client *http.Client
	// Timeout applies when Client is nil.
	Timeout time.Duration
	// PerMinute caps deliveries; 0 means unlimited.
	PerMinute int
}

type WebhookSender struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebhookSender(opts WebhookOpts) *WebhookSender {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.PerMinute))
	}
	return &WebhookSender{client: client, limiter: rate.NewLimiter(limit, 1)}
}

// PayloadFor builds the body for n. triggeredAt is UTC with millisecond precision.
func PayloadFor(n Notification) WebhookPayload {
	return WebhookPayload{
		Title:       n.Title,
		Message:     n.Message,
		AlertDate:   n.AlertDate,
		TriggeredAt: n.TriggeredAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// Send POSTs the alert to url. Any non-2xx status is an error.
func (w *WebhookSender) Send(ctx context.Context, url string, n Notification) error {
	if err := w.limiter.Wait(ctx); err != nil {
		webhookDeliveries.WithLabelValues("rate_limited").Inc()
		return fmt.Errorf("webhook rate limit: %w", err)
	}
	body, err := json.Marshal(PayloadFor(n))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		webhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, uuid.NewString())

	resp, err := w.client.Do(req)
	if err != nil {
		webhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		webhookDeliveries.WithLabelValues("rejected").Inc()
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	webhookDeliveries.WithLabelValues("delivered").Inc()
	return nil
}
