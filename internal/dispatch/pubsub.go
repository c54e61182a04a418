package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

// PubSub publishes one message per record to a Google Cloud Pub/Sub topic.
type PubSub struct {
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub wraps an existing topic handle.
func NewPubSub(topic *pubsub.Topic, logger *zap.Logger) *PubSub {
	return &PubSub{topic: topic, logger: logging.OrNop(logger).Named("pubsub")}
}

// Name implements Sink.
func (p *PubSub) Name() string { return "pubsub" }

// Send implements Sink. Messages are published concurrently and then awaited
// in order.
func (p *PubSub) Send(ctx context.Context, batch Batch) Outcome {
	var out Outcome
	if p.topic == nil {
		out.Failed = len(batch.Records)
		return out
	}
	results := make([]*pubsub.PublishResult, 0, len(batch.Records))
	for _, r := range batch.Records {
		data, err := json.Marshal(Payload(r, batch.RunID, batch.DiscoveredAt))
		if err != nil {
			p.logger.Warn("marshal payload", zap.String("url", r.URL), zap.Error(err))
			results = append(results, nil)
			continue
		}
		results = append(results, p.topic.Publish(ctx, &pubsub.Message{
			Data: data,
			Attributes: map[string]string{
				"run_id": batch.RunID,
				"source": string(r.Source),
			},
		}))
	}
	for i, res := range results {
		if res == nil {
			out.Failed++
			continue
		}
		if _, err := res.Get(ctx); err != nil {
			p.logger.Warn("publish failed", zap.String("url", batch.Records[i].URL), zap.Error(err))
			out.Failed++
			continue
		}
		out.Delivered++
	}
	return out
}

// Close flushes pending messages.
func (p *PubSub) Close() {
	if p.topic != nil {
		p.topic.Stop()
	}
}

// OpenPubSub connects to topicID in projectID using Application Default Credentials.
func OpenPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, *pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewPubSub(client.Topic(topicID), logger), client, nil
}
