// Package events publishes domain events to observers outside the worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

var log = logger.Named("events")

// SQSAPI is the subset of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSPublisher sends each event as one JSON message.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher loads the default AWS config for region.
func NewSQSPublisher(ctx context.Context, region, queueURL string) (*SQSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSPublisherWithClient(sqs.NewFromConfig(cfg), queueURL), nil
}

// NewSQSPublisherWithClient wraps an existing client.
func NewSQSPublisherWithClient(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish implements ports.Events.
func (p *SQSPublisher) Publish(ctx context.Context, e contracts.DomainEvent) contracts.OperationResult {
	if err := contracts.Validate(e); err != nil {
		return contracts.Fail(err)
	}
	fill(&e)
	body, err := json.Marshal(e)
	if err != nil {
		return contracts.Fail(fmt.Errorf("marshal event: %w", err))
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(e.Type)},
			"event_id":   {DataType: aws.String("String"), StringValue: aws.String(e.ID)},
		},
	})
	if err != nil {
		log.Warn("sqs publish failed", "type", e.Type, "event_id", e.ID, "error", err)
		return contracts.Fail(fmt.Errorf("send message: %w", err))
	}
	log.Debug("event published", "type", e.Type, "event_id", e.ID, "subject", e.Subject)
	return contracts.OperationResult{Success: true}
}

func (p *SQSPublisher) ModuleName() string { return "events" }

func (p *SQSPublisher) IsConfigured() bool { return p.queueURL != "" }

// Health reads the queue attributes.
func (p *SQSPublisher) Health(ctx context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: p.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
	_, err := p.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		h.Status = contracts.HealthUnhealthy
		h.Message = err.Error()
	}
	return h
}

// Nop logs events at debug level and drops them.
type Nop struct{}

// Publish implements ports.Events.
func (Nop) Publish(_ context.Context, e contracts.DomainEvent) contracts.OperationResult {
	log.Debug("event", "type", e.Type, "subject", e.Subject)
	return contracts.OperationResult{Success: true}
}

func (Nop) ModuleName() string { return "events" }

func (Nop) IsConfigured() bool { return true }

func (Nop) Health(context.Context) contracts.ModuleHealth {
	return contracts.ModuleHealth{ModuleName: "events", Status: contracts.HealthHealthy, Message: "no sink configured", CheckedAt: time.Now()}
}

func fill(e *contracts.DomainEvent) {
	if e.SchemaVersion == "" {
		e.SchemaVersion = contracts.SchemaVersion
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
}
