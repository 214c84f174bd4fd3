package notify

import (
	"context"
	"log/slog"

	"waterwatch/internal/domain"
)

// LogTransport writes notifications to the service log.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates log-only transport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Name returns transport name.
func (t *LogTransport) Name() string {
	return "log"
}

// Display logs notification at warn level for critical and info otherwise.
func (t *LogTransport) Display(ctx context.Context, notification domain.Notification) error {
	level := slog.LevelInfo
	if notification.Critical {
		level = slog.LevelWarn
	}
	t.logger.Log(ctx, level, "notification",
		"id", notification.ID,
		"title", notification.Title,
		"body", notification.Body,
		"critical", notification.Critical,
		"repeat", notification.Repeat,
	)
	return nil
}

// Cancel logs notification removal.
func (t *LogTransport) Cancel(ctx context.Context, id string) error {
	t.logger.InfoContext(ctx, "notification cancelled", "id", id)
	return nil
}
