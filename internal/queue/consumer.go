package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultLogPath is where the consumer appends change lines.
var DefaultLogPath = filepath.Join("logs", "lotes.log")

// StartLotConsumer connects to RabbitMQ, declares the lot.updated queue
// (durable) and appends one line per message to logPath.  It reconnects
// with exponential backoff and returns only when ctx is cancelled.
// Messages that cannot be handled are rejected without requeue so one bad
// payload does not spin the loop.
func StartLotConsumer(ctx context.Context, url, logPath string, log *zap.Logger) error {
	if logPath == "" {
		logPath = DefaultLogPath
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("lot-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("lot-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("lot-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(LotUpdatedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(LotUpdatedQueue, "", false, false, false, false, nil)
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
			if err := handleMessage(d.Body, logPath); err != nil {
				log.Warn("lot-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte, logPath string) error {
	var ev LotUpdatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.LotID == "" {
		return errors.New("event without lot_id")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one human readable log line.
func FormatLine(ev LotUpdatedEvent) string {
	price := "-"
	if ev.Price != nil {
		price = strconv.FormatFloat(*ev.Price, 'f', 2, 64)
	}
	return fmt.Sprintf("[%s] Lot updated | id=%s | condicion=%s | precio=%s | asesor=%q | cliente=%q | fields=[%s]\n",
		ev.SavedAt, ev.LotID, ev.Condicion, price, ev.Asesor, ev.Cliente, strings.Join(ev.Fields, ","))
}
