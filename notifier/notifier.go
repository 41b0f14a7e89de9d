package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/7331/binance-live-price-alerts/types"
)

// Service delivers one payload to one target.
type Service interface {
	Send(ctx context.Context, target types.WebhookTarget, payload WebhookPayload) error
}

// Identity is the username and avatar used when a target sets neither.
type Identity struct {
	Username  string
	AvatarURL string
}

// Delivery is the outcome for a single target.
type Delivery struct {
	Target types.WebhookTarget
	Err    error
}

// Dispatcher sends an alert to all of its targets, each independently.
// Failed deliveries are reported, never retried.
type Dispatcher struct {
	service  Service
	identity Identity
	logger   log.FieldLogger
}

func NewDispatcher(service Service, identity Identity, logger log.FieldLogger) *Dispatcher {
	if identity.Username == "" {
		identity.Username = DefaultUsername
	}
	if identity.AvatarURL == "" {
		identity.AvatarURL = DefaultAvatarURL
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Dispatcher{
		service:  service,
		identity: identity,
		logger:   logger,
	}
}

// Notify posts event to every target concurrently and waits for all of
// them. The returned error summarises the failed targets.
func (d *Dispatcher) Notify(ctx context.Context, event types.AlertEvent) ([]Delivery, error) {
	deliveries := make([]Delivery, len(event.Targets))
	var wg sync.WaitGroup

	for i, target := range event.Targets {
		wg.Add(1)
		go func(i int, target types.WebhookTarget) {
			defer wg.Done()
			err := d.service.Send(ctx, target, BuildPayload(event, target, d.identity))
			deliveries[i] = Delivery{Target: target, Err: err}
		}(i, target)
	}
	wg.Wait()

	var errs []string
	for _, delivery := range deliveries {
		entry := d.logger.WithFields(log.Fields{
			"alert_id": event.ID,
			"symbol":   event.Symbol,
			"target":   RedactURL(delivery.Target.URL),
		})
		if delivery.Err != nil {
			entry.WithError(delivery.Err).Error("Webhook delivery failed")
			errs = append(errs, delivery.Err.Error())
			continue
		}
		entry.Debug("Webhook delivered")
	}

	if len(errs) > 0 {
		return deliveries, types.DispatchError("notify",
			fmt.Errorf("%d/%d webhook deliveries failed: %s", len(errs), len(deliveries), strings.Join(errs, "; ")))
	}
	return deliveries, nil
}

// DiscordWebhook posts payloads as JSON to Discord-compatible webhook URLs.
type DiscordWebhook struct {
	client *http.Client
}

// NewDiscordWebhook shares one HTTP client across all deliveries; timeout
// bounds every request.
func NewDiscordWebhook(timeout time.Duration) *DiscordWebhook {
	return &DiscordWebhook{
		client: &http.Client{Timeout: timeout},
	}
}

func (w *DiscordWebhook) Send(ctx context.Context, target types.WebhookTarget, payload WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return types.DispatchError("marshal webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(jsonData))
	if err != nil {
		return types.DispatchError("create webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		// url.Error repeats the full URL, token included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return types.DispatchError("send webhook", errors.Wrapf(err, "post %s", RedactURL(target.URL)))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.DispatchError("send webhook",
			errors.Errorf("post %s failed with status: %d", RedactURL(target.URL), resp.StatusCode))
	}
	return nil
}

// RedactURL strips the token part of a webhook URL for logging.
func RedactURL(raw string) string {
	if i := strings.LastIndex(raw, "/"); i > 0 && i < len(raw)-1 {
		return raw[:i+1] + "***"
	}
	return raw
}
