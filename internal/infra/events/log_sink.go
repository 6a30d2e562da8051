package events

import (
	"context"

	"github.com/boddenberg/fincore/internal/domain"

	"go.uber.org/zap"
)

// LogSink writes events and notification requests to the structured log.
// It is used when no broker is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event domain.Event) error {
	s.logger.Info("event",
		zap.String("event", event.Name),
		zap.String("org_id", event.OrganizationID),
		zap.Any("payload", event.Payload),
	)
	return nil
}

func (s *LogSink) Notify(_ context.Context, recipients []domain.Member, alert domain.Alert) error {
	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email)
	}
	s.logger.Info("budget alert notification",
		zap.String("budget_id", alert.BudgetID),
		zap.String("budget_name", alert.BudgetName),
		zap.String("percentage_used", alert.PercentageUsed.String()),
		zap.Strings("recipients", emails),
	)
	return nil
}
