// Package eventbridge publishes memo reconciliation events to AWS EventBridge.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"memo-backend/application/ports"
	"memo-backend/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// EventBridge has a limit of 10 entries per PutEvents call
const maxBatchSize = 10

// DefaultSource is the event source used when none is configured
const DefaultSource = "memo-backend"

// API is the subset of the EventBridge client the publisher needs
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.ReconciliationReporter using AWS EventBridge
type Publisher struct {
	client   API
	eventBus string
	source   string
	logger   *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBus, source string, logger *zap.Logger) *Publisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = DefaultSource
	}
	return &Publisher{
		client:   client,
		eventBus: eventBus,
		source:   source,
		logger:   logger,
	}
}

var (
	_ ports.ReconciliationReporter = (*Publisher)(nil)
	_ ports.EventPublisher         = (*Publisher)(nil)
)

// ReportDegraded publishes a single reconciliation request
func (p *Publisher) ReportDegraded(ctx context.Context, event events.IndexReconcileRequested) error {
	return p.Publish(ctx, event)
}

// Publish sends events in batches of at most ten entries
func (p *Publisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	for i := 0; i < len(evts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(evts) {
			end = len(evts)
		}
		if err := p.publishBatch(ctx, evts[i:end]); err != nil {
			return fmt.Errorf("failed to publish event batch: %w", err)
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, batch []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, event := range batch {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBus),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
		})
	}

	output, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to put events: %w", err)
	}

	// Check for failed entries
	if output.FailedEntryCount > 0 {
		for i, entry := range output.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("EventBridge rejected event",
					zap.Int("index", i),
					zap.String("eventType", batch[i].GetEventType()),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", output.FailedEntryCount)
	}

	p.logger.Debug("Published events",
		zap.String("eventBus", p.eventBus),
		zap.Int("count", len(entries)),
	)
	return nil
}

// LogReporter is used when EventBridge is disabled; it only logs
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter that writes requests to the log
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// ReportDegraded logs the reconciliation request
func (r *LogReporter) ReportDegraded(ctx context.Context, event events.IndexReconcileRequested) error {
	r.logger.Warn("Reconciliation needed",
		zap.String("memoID", event.MemoID),
		zap.String("ownerID", event.OwnerID),
		zap.Int("version", event.Version),
		zap.String("store", event.Store),
		zap.String("reason", event.Reason),
	)
	return nil
}
