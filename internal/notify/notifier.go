package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	appLog "tkbcal/internal/log"
)

// Notifier delivers a due reminder somewhere a student will see it.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to the application log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, r Reminder) error {
	appLog.Info("reminder",
		"id", r.ID,
		"title", r.Title,
		"body", r.Body,
		"start_at", r.StartAt.Format("2006-01-02 15:04"),
	)
	return nil
}

// SlackNotifier posts reminders to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
}

func (n SlackNotifier) Notify(ctx context.Context, r Reminder) error {
	if n.WebhookURL == "" {
		return errors.New("slack webhook URL is empty")
	}
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(":bell: *%s*\n%s", r.Title, r.Body),
	}
	if err := slack.PostWebhookContext(ctx, n.WebhookURL, msg); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	return nil
}

// Multi fans a reminder out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, r Reminder) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
