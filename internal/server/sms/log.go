package sms

import (
	"context"

	"github.com/dmitrijs2005/claimgate/internal/logging"
)

// LogSender writes codes to the log instead of a phone. Development only.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, code, phoneNumber string) (bool, error) {
	s.logger.Info(ctx, "sms delivered to log", "phone_number", phoneNumber, "code", code)
	return true, nil
}
