package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// OutcomeEvent is the message published after every orchestration.
type OutcomeEvent struct {
	CorrelationID string               `json:"correlation_id"`
	SubjectID     string               `json:"subject_id"`
	OwnerID       string               `json:"owner_id"`
	Success       bool                 `json:"success"`
	Method        types.Method         `json:"method,omitempty"`
	Warning       string               `json:"warning,omitempty"`
	Error         string               `json:"error,omitempty"`
	Campaign      types.CampaignResult `json:"campaign,omitempty"`
	DurationMS    int64                `json:"duration_ms"`
	PublishedAt   time.Time            `json:"published_at"`
}

// OutcomePublisher publishes outcomes to a Pub/Sub topic
type OutcomePublisher struct {
	topic *pubsub.Topic
}

// NewOutcomePublisher publishes to topicName. The topic must exist.
func NewOutcomePublisher(client *pubsub.Client, topicName string) *OutcomePublisher {
	return &OutcomePublisher{topic: client.Topic(topicName)}
}

// Publish sends the outcome and waits for the server ack
func (p *OutcomePublisher) Publish(ctx context.Context, o *types.Outcome) error {
	data, err := json.Marshal(EventFor(o))
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	attrs := map[string]string{
		"correlation_id": o.CorrelationID,
		"success":        fmt.Sprint(o.Success),
	}
	if o.Method != "" {
		attrs["method"] = string(o.Method)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Stop flushes pending messages
func (p *OutcomePublisher) Stop() {
	p.topic.Stop()
}

// EventFor converts an outcome to its published form
func EventFor(o *types.Outcome) OutcomeEvent {
	return OutcomeEvent{
		CorrelationID: o.CorrelationID,
		SubjectID:     o.SubjectID,
		OwnerID:       o.OwnerID,
		Success:       o.Success,
		Method:        o.Method,
		Warning:       o.Warning,
		Error:         o.Error,
		Campaign:      o.Campaign,
		DurationMS:    o.Duration.Milliseconds(),
		PublishedAt:   time.Now().UTC(),
	}
}
