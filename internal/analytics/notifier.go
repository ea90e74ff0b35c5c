// Package analytics delivers best-effort page-view events to an external
// sink. Delivery never blocks a redirect and never fails observably: every
// error is logged and discarded.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jmdto/linkshort/internal/config"
	"github.com/jmdto/linkshort/pkg/logger"
)

// Event is a page-view-equivalent analytics event.
type Event struct {
	URL      string
	Title    string
	Referrer string
	Data     map[string]string
}

// Notifier sends analytics events. Implementations must be fire-and-forget.
type Notifier interface {
	Notify(event Event)
}

// NoopNotifier discards all events. Used when no sink is configured.
type NoopNotifier struct{}

// Notify does nothing.
func (NoopNotifier) Notify(Event) {}

// UmamiNotifier posts events to an umami-compatible collection endpoint.
type UmamiNotifier struct {
	endpoint  string
	websiteID string
	client    *http.Client
	timeout   time.Duration
	log       *logger.Logger
}

// NewNotifier builds a Notifier from configuration: a NoopNotifier when no
// destination is configured, an UmamiNotifier otherwise.
func NewNotifier(cfg *config.AnalyticsConfig, log *logger.Logger) Notifier {
	if !cfg.Enabled() {
		return NoopNotifier{}
	}
	return &UmamiNotifier{
		endpoint:  cfg.Endpoint,
		websiteID: cfg.WebsiteID,
		client:    &http.Client{Timeout: cfg.Timeout},
		timeout:   cfg.Timeout,
		log:       log,
	}
}

// umamiPayload is the wire shape of a collection request.
type umamiPayload struct {
	Type    string       `json:"type"`
	Payload umamiDetails `json:"payload"`
}

type umamiDetails struct {
	Website  string            `json:"website"`
	URL      string            `json:"url"`
	Title    string            `json:"title,omitempty"`
	Referrer string            `json:"referrer,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notify dispatches the event in a background goroutine and returns
// immediately.
func (n *UmamiNotifier) Notify(event Event) {
	go n.deliver(event)
}

// deliver performs one outbound POST. Failures are logged, never returned.
func (n *UmamiNotifier) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.send(ctx, event); err != nil {
		n.log.Warn("analytics delivery failed", "error", err.Error(), "url", event.URL)
	}
}

func (n *UmamiNotifier) send(ctx context.Context, event Event) error {
	payload := umamiPayload{
		Type: "event",
		Payload: umamiDetails{
			Website:  n.websiteID,
			URL:      event.URL,
			Title:    event.Title,
			Referrer: event.Referrer,
			Data:     event.Data,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+"/api/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "linkshort")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analytics sink returned %s", resp.Status)
	}
	return nil
}
