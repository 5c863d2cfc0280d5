package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier POSTs events as JSON, either as a generic payload or as a
// Slack Block Kit message.
type WebhookNotifier struct {
	url      string
	template string
	client   *http.Client
}

func NewWebhookNotifier(url, template string) *WebhookNotifier {
	return &WebhookNotifier{
		url:      url,
		template: template,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// GenericPayload is the default webhook body.
type GenericPayload struct {
	Event string `json:"event"`
	Data  Event  `json:"data"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	var body []byte
	var err error
	switch w.template {
	case "slack":
		body, err = buildSlackPayload(ev)
	default:
		body, err = json.Marshal(GenericPayload{Event: "domain." + ev.Kind, Data: ev})
	}
	if err != nil {
		return fmt.Errorf("build webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST to %s: %w", w.url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func buildSlackPayload(ev Event) ([]byte, error) {
	emoji := ":warning:"
	if ev.Severity == "critical" {
		emoji = ":rotating_light:"
	}

	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Domain:* %s", ev.Hostname)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Tenant:* %s", ev.TenantID)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", ev.Severity)},
	}
	if ev.ExpiresAt != nil {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Expires:* %s", ev.ExpiresAt.UTC().Format(time.RFC3339)),
		})
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]string{"type": "plain_text", "text": ev.Kind},
		},
		{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": fmt.Sprintf("%s %s", emoji, ev.Message)},
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}
	return json.Marshal(map[string]any{"blocks": blocks})
}
