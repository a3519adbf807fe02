package notify

import (
	"context"
	"log"
)

// LogSender writes notification requests to the process log. Used when no
// webhook is configured, mostly in development.
type LogSender struct {
	logger *log.Logger
}

// NewLogSender constructs a log sender.
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the notification request.
func (s *LogSender) Send(_ context.Context, userID, kind string, payload map[string]any) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Printf("notification: user=%s kind=%s context=%v", userID, kind, payload)
	return nil
}
