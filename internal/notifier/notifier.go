package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/httpclient"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/rs/zerolog"
)

const webhookTimeout = 20 * time.Second

// Notifier posts update run outcomes to a Discord-compatible webhook.
// It is entirely best-effort: a missing URL disables it and delivery
// failures are logged, never propagated into the update flow.
type Notifier struct {
	cfg        config.NotificationConfig
	httpClient *httpclient.HTTPClient
	logger     zerolog.Logger
}

// NewNotifier creates a webhook notifier from the notification config.
func NewNotifier(cfg config.NotificationConfig, logger zerolog.Logger) (*Notifier, error) {
	client, err := httpclient.NewHTTPClientBuilder(logger).
		WithTimeout(webhookTimeout).
		Build()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to build webhook HTTP client")
	}

	return &Notifier{
		cfg:        cfg,
		httpClient: client,
		logger:     logger.With().Str("component", "Notifier").Logger(),
	}, nil
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.WebhookURL != ""
}

// NotifyRunOutcome sends the run summary if the config wants a
// notification for its outcome. Errors are swallowed after logging.
func (n *Notifier) NotifyRunOutcome(ctx context.Context, summary RunSummary) {
	if !n.Enabled() {
		return
	}
	if summary.Succeeded() && !n.cfg.NotifyOnSuccess {
		return
	}
	if !summary.Succeeded() && !n.cfg.NotifyOnFailure {
		return
	}

	payload := buildRunPayload(summary, n.cfg.MentionRoleIDs)
	if err := n.send(ctx, payload); err != nil {
		n.logger.Warn().Err(err).Str("status", summary.Status).Msg("Failed to deliver webhook notification")
		return
	}
	n.logger.Info().Str("status", summary.Status).Msg("Webhook notification sent")
}

// send posts the payload as JSON to the configured webhook URL.
func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorwrapper.WrapError(err, "failed to marshal webhook payload")
	}

	resp, err := n.httpClient.Do(&httpclient.HTTPRequest{
		URL:     n.cfg.WebhookURL,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    bytes.NewReader(body),
		Context: ctx,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorwrapper.NewHTTPErrorWithURL(resp.StatusCode, "webhook rejected notification", n.cfg.WebhookURL)
	}
	return nil
}
