package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/common"
	"github.com/dmitrijs2005/claimgate/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// outboundMessage is the payload consumed by the SMS relay.
type outboundMessage struct {
	To       string    `json:"to"`
	Message  string    `json:"message"`
	IssuedAt time.Time `json:"issued_at"`
}

// publishFunc publishes msg and reports whether the broker acked it.
type publishFunc func(ctx context.Context, msg amqp.Publishing) (bool, error)

// AMQPSender hands messages to a relay through a durable RabbitMQ queue.
// The broker's publisher confirm is taken as delivery.
type AMQPSender struct {
	queue   string
	logger  logging.Logger
	conn    *amqp.Connection
	channel *amqp.Channel

	mu      sync.Mutex
	publish publishFunc
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// maskAMQPURL hides the password for logging.
func maskAMQPURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// NewAMQPSender dials the broker, puts the channel into confirm mode and
// declares queue.
func NewAMQPSender(amqpURL, queue string, logger logging.Logger) (*AMQPSender, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp url: %w", err)
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("amqp dial %s: %w", maskAMQPURL(cleanURL), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp confirm mode: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}

	s := &AMQPSender{queue: queue, logger: logger, conn: conn, channel: ch}
	s.publish = s.publishConfirmed
	logger.Info(context.Background(), "amqp sms driver ready", "url", maskAMQPURL(cleanURL), "queue", queue)
	return s, nil
}

func (s *AMQPSender) publishConfirmed(ctx context.Context, msg amqp.Publishing) (bool, error) {
	dc, err := s.channel.PublishWithDeferredConfirmWithContext(ctx, "", s.queue, true, false, msg)
	if err != nil {
		return false, err
	}
	return dc.WaitContext(ctx)
}

func (s *AMQPSender) Send(ctx context.Context, code, phoneNumber string) (bool, error) {
	body, err := json.Marshal(outboundMessage{
		To:       phoneNumber,
		Message:  MessageText(code),
		IssuedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	messageID, err := common.MakeRandHexString(16)
	if err != nil {
		return false, err
	}

	// confirms are matched by delivery tag, so publishes are serialized
	s.mu.Lock()
	defer s.mu.Unlock()

	acked, err := s.publish(ctx, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return false, fmt.Errorf("amqp publish: %w", err)
	}
	if !acked {
		s.logger.Warn(ctx, "broker nacked sms", "queue", s.queue)
	}
	return acked, nil
}

func (s *AMQPSender) Close() error {
	var errs []error
	if s.channel != nil {
		errs = append(errs, s.channel.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}
