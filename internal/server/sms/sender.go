// Package sms delivers one-time passcodes to phone numbers. A driver reports
// delivery through its return value; (false, nil) and any error both mean
// the code must not be recorded.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/logging"
	"github.com/dmitrijs2005/claimgate/internal/server/config"
)

// Sender delivers code to phoneNumber.
type Sender interface {
	Send(ctx context.Context, code, phoneNumber string) (bool, error)
}

// Closer is implemented by drivers holding a connection.
type Closer interface {
	Close() error
}

// MessageText renders the text delivered to the user.
func MessageText(code string) string {
	return fmt.Sprintf("Your claimgate verification code is %s", code)
}

// New builds the driver selected by cfg.SMSDriver, bounded by cfg.SMSTimeout.
func New(cfg *config.Config, logger logging.Logger) (Sender, error) {
	var (
		s   Sender
		err error
	)
	switch cfg.SMSDriver {
	case config.SMSDriverLog, "":
		s = NewLogSender(logger)
	case config.SMSDriverHTTP:
		s, err = NewHTTPSender(cfg.SMSGatewayURL, cfg.SMSGatewayToken, nil)
	case config.SMSDriverAMQP:
		s, err = NewAMQPSender(cfg.AMQPURL, cfg.SMSQueue, logger)
	default:
		return nil, fmt.Errorf("unknown sms driver %q", cfg.SMSDriver)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(s, cfg.SMSTimeout), nil
}

type timeoutSender struct {
	next    Sender
	timeout time.Duration
}

// WithTimeout bounds every Send of next by d. A non-positive d disables it.
func WithTimeout(next Sender, d time.Duration) Sender {
	if d <= 0 {
		return next
	}
	return &timeoutSender{next: next, timeout: d}
}

func (t *timeoutSender) Send(ctx context.Context, code, phoneNumber string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Send(ctx, code, phoneNumber)
}

// Close forwards to the wrapped driver when it holds a connection.
func (t *timeoutSender) Close() error {
	if c, ok := t.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
