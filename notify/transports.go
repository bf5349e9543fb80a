package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// LogTransport writes messages to the log instead of delivering them.
type LogTransport struct {
	Logger *zap.Logger
}

func (LogTransport) Name() string { return "log" }

func (t LogTransport) Send(_ context.Context, msg Message) error {
	t.Logger.Info("notification",
		zap.String("message_id", msg.ID),
		zap.String("to", msg.To.Name),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// MultiTransport sends one message over several channels, one attempt each.
// Channels without an address for the recipient are skipped by the channel
// itself.
type MultiTransport []Transport

func (MultiTransport) Name() string { return "multi" }

func (m MultiTransport) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(ctx, msg); err != nil && !errors.Is(err, ErrNoAddress) {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ErrNoAddress is returned by a channel that has no address for the recipient.
var ErrNoAddress = errors.New("recipient has no address for this channel")
