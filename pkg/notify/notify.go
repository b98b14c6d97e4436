// Package notify delivers approval messages to an operator.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Message is a plain-text notification.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier sends a message or reports why it could not.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

var errRecipientRequired = errors.New("notification recipient required")

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errRecipientRequired
	}
	return nil
}

// LogNotifier writes messages to the structured log. Used for local runs
// where no mail relay or broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "notification",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
