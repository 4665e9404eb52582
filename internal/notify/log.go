package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("type", msg.Type),
		zap.String("recipient", msg.Recipient),
		zap.String("staker", msg.Staker),
		zap.Uint64("call_id", msg.CallID),
	)
	return nil
}
