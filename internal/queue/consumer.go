package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditConsumer reads hold events from the hold.events queue and appends
// one line per event to an audit log file.
type AuditConsumer struct {
	url     string
	logPath string

	mu sync.Mutex // serialises writes to logPath
}

// NewAuditConsumer returns a consumer for the broker at url writing to
// logPath (logs/booking.log when empty).
func NewAuditConsumer(url, logPath string) *AuditConsumer {
	if logPath == "" {
		logPath = filepath.Join("logs", "booking.log")
	}
	return &AuditConsumer{url: url, logPath: logPath}
}

// Run connects to RabbitMQ, declares the queue and consumes until ctx is
// cancelled.  Dial and channel failures are retried with exponential
// backoff so the server keeps operating while the broker is down.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(HoldEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(HoldEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				log.Printf("audit-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the audit log.
func (c *AuditConsumer) Handle(body []byte) error {
	var ev HoldEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.HoldID == "" {
		return errors.New("event without type or hold id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if err := WriteAuditLine(f, ev); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// WriteAuditLine formats ev as a single human readable line.
func WriteAuditLine(w io.Writer, ev HoldEvent) error {
	_, err := fmt.Fprintf(w, "[%s] %s | hold_id=%s | show_id=%d | status=%s | contact=%q <%s> | total=%d cents | seats=[%s]\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.HoldID, ev.ShowID, ev.Status,
		ev.ContactName, ev.ContactEmail, ev.TotalAmountCents, strings.Join(ev.Seats, ","))
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
