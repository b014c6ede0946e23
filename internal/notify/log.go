// Package notify provides alert delivery sinks.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// LogNotifier writes notifications to the structured log. It is the
// default sink and never fails.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at a level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, subject, message string, severity books.Severity) error {
	fields := []zap.Field{
		zap.String("subject", subject),
		zap.String("message", message),
		zap.String("severity", string(severity)),
	}
	if severity == books.SeverityWarning {
		n.logger.Warn("notification", fields...)
		return nil
	}
	n.logger.Info("notification", fields...)
	return nil
}
