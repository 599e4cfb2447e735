// Package notify posts run outcomes to a Slack incoming webhook.
// Notification failures never affect the run result; the orchestrator
// logs them and moves on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dbsmedya/gofresh/internal/config"
)

// Event is the run outcome rendered into the notification.
type Event struct {
	Database  string
	Vendor    string
	Tables    int
	Waves     int
	Duration  time.Duration
	Predicted time.Duration
	Risk      string
	Success   bool
	Err       error
}

// Notifier delivers events to the configured Slack webhook.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
}

func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether a webhook URL is configured.
func (n *Notifier) IsEnabled() bool {
	return n.cfg.SlackWebhookURL != ""
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Send posts the event. It is a no-op when no webhook is configured.
func (n *Notifier) Send(ctx context.Context, ev Event) error {
	if !n.IsEnabled() {
		return nil
	}

	payload := n.buildPayload(ev)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) buildPayload(ev Event) slackPayload {
	color := "good"
	text := fmt.Sprintf(":white_check_mark: Database reset complete: %s", ev.Database)
	if !ev.Success {
		color = "danger"
		text = fmt.Sprintf(":x: Database reset failed: %s", ev.Database)
	}

	fields := []slackField{
		{Title: "Vendor", Value: ev.Vendor, Short: true},
		{Title: "Tables", Value: fmt.Sprintf("%d in %d waves", ev.Tables, ev.Waves), Short: true},
		{Title: "Duration", Value: ev.Duration.Round(time.Millisecond).String(), Short: true},
		{Title: "Risk", Value: ev.Risk, Short: true},
	}
	if ev.Predicted > 0 {
		fields = append(fields, slackField{
			Title: "Predicted",
			Value: ev.Predicted.Round(time.Millisecond).String(),
			Short: true,
		})
	}
	if ev.Err != nil {
		fields = append(fields, slackField{Title: "Error", Value: ev.Err.Error()})
	}

	return slackPayload{
		Channel:  n.cfg.Channel,
		Username: n.cfg.Username,
		Text:     text,
		Attachments: []slackAttachment{
			{Color: color, Fields: fields},
		},
	}
}
