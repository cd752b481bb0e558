package throttlego

import (
	"context"
	"encoding/json"

	"github.com/ssgreg/logf"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	ActionAllowed    = "ALLOWED"
	ActionDenied     = "DENIED"
	ActionDeniedRisk = "DENIED_RISK"
)

type RateLimitEvent struct {
	Key         string  `json:"key"`
	Endpoint    string  `json:"endpoint"`
	Policy      string  `json:"policy"`
	Action      string  `json:"action"` // "ALLOWED", "DENIED", "DENIED_RISK"
	WaitSeconds float64 `json:"waitseconds"`
	Timestamp   int64   `json:"timestamp"`
	UserAgent   string  `json:"useragent"`
	StatusCode  int     `json:"statuscode"`
}

type EventPublisher interface {
	Publish(event RateLimitEvent)
}

// KafkaPublisher produces events asynchronously; delivery failures are
// logged and never reach the request path.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *logf.Logger
}

func NewKafkaPublisher(client *kgo.Client, topic string, logger *logf.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		client: client,
		topic:  topic,
		logger: loggerOrDisabled(logger),
	}
}

func (k *KafkaPublisher) Publish(event RateLimitEvent) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		k.logger.Error("failed to encode rate limit event", logf.Error(err))
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.Key),
		Value: eventBytes,
	}

	k.client.Produce(context.Background(), record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Warn("failed to produce rate limit event",
				logf.String("topic", r.Topic), logf.String("key", event.Key), logf.Error(err))
		}
	})
}
