// Package worker drains the notification outbox.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jwalitptl/care-portal/internal/email"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/pkg/messaging"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Channel is the pub/sub channel every event is published on.
	Channel string
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("batch size must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("poll interval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("retry attempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("retry delay must be greater than 0")
	case c.Channel == "":
		return errors.New("channel is required")
	}
	return nil
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	mailer  email.Service
	config  OutboxProcessorConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	mailer email.Service,
	config OutboxProcessorConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if mailer == nil {
		mailer = email.NewNoopService()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		mailer:  mailer,
		config:  config,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch handles one batch of due events and reports how many were
// delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.GetPending(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Warn("failed to deliver outbox event",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Int("attempt", event.RetryCount+1),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.deliver(ctx, event); err != nil {
		p.recordFailure(ctx, event, err)
		return err
	}

	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error("failed to mark event processed", zap.String("event_id", event.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:      event.ID.String(),
		Type:    event.EventType,
		Payload: event.Payload,
	}
	if err := p.broker.Publish(ctx, p.config.Channel, msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	var payload model.NotificationPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Email == "" {
		return nil
	}
	err := p.mailer.SendCustom(ctx, payload.Email, payload.Title, payload.Message)
	if errors.Is(err, email.ErrDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) recordFailure(ctx context.Context, event *model.OutboxEvent, cause error) {
	msg := cause.Error()
	if event.RetryCount+1 >= p.config.RetryAttempts {
		if p.metrics != nil {
			p.metrics.OutboxEventsFailed.Inc()
		}
		if err := p.repo.MarkFailed(ctx, event.ID, msg); err != nil {
			p.logger.Error("failed to mark event failed", zap.String("event_id", event.ID.String()), zap.Error(err))
		}
		return
	}

	if p.metrics != nil {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	}
	if err := p.repo.MarkRetry(ctx, event.ID, msg, p.now().Add(p.config.RetryDelay)); err != nil {
		p.logger.Error("failed to schedule event retry", zap.String("event_id", event.ID.String()), zap.Error(err))
	}
}
