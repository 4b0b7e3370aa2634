package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
	"github.com/kirillkom/health-report-analyzer/internal/infrastructure/resilience"
)

const (
	DefaultSubject    = "health.workflow"
	DefaultQueueGroup = "observers"
)

// Relay publishes workflow events to NATS and feeds subscribed events to
// local handlers. Events travel as JSON on "<subject>.<event type>".
type Relay struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Relay, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Relay, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("health-report-analyzer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Relay{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (r *Relay) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}

// Subject returns the subject an event is published on.
func (r *Relay) Subject(eventType domain.EventType) string {
	return EventSubject(r.subject, eventType)
}

func EventSubject(prefix string, eventType domain.EventType) string {
	return prefix + "." + string(eventType)
}

// HandleEvent lets the relay subscribe to the in-process bus.
func (r *Relay) HandleEvent(ctx context.Context, event domain.Event) error {
	return r.PublishEvent(ctx, event)
}

func (r *Relay) PublishEvent(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := r.Subject(event.Type)

	call := func(_ context.Context) error {
		if err := r.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if r.executor != nil {
		err = r.executor.Execute(ctx, operationPublish, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(subject, err)
	}
	return nil
}

// SubscribeEvents delivers every relayed event to handler until ctx is done.
// Instances sharing queueGroup split the stream between them.
func (r *Relay) SubscribeEvents(ctx context.Context, queueGroup string, handler ports.EventHandler) error {
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	sub, err := r.conn.QueueSubscribe(r.subject+".>", queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := DecodeEvent(msg.Data)
		if err != nil {
			r.logger.Warn("relay_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler.HandleEvent(handlerCtx, event); err != nil {
			r.logger.Warn("relay_handler_failed", "session_id", event.SessionID, "type", event.Type, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := r.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := r.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func DecodeEvent(data []byte) (domain.Event, error) {
	var event domain.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.Event{}, domain.WrapError(domain.ErrInvalidInput, "decode event", err)
	}
	if event.SessionID == "" || event.Type == "" {
		return domain.Event{}, domain.WrapError(domain.ErrInvalidInput, "decode event", fmt.Errorf("missing session or type"))
	}
	return event, nil
}
