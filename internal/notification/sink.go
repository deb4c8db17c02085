package notification

import (
	"context"
	"log/slog"
)

// LogSink records deliveries on the application log. It is the default sink
// for deployments that have no external channel configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, n *Notification) error {
	s.logger.InfoContext(ctx, "notification delivered",
		slog.String("notification_id", n.ID.String()),
		slog.String("recipient_id", n.RecipientID.String()),
		slog.String("document_id", n.DocumentID.String()),
		slog.String("type", string(n.Type)),
		slog.String("message", n.Message),
	)
	return nil
}
