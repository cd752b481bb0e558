package throttlego

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ssgreg/logf"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ScoreReader returns the current risk score for a key
type ScoreReader interface {
	GetScore(key string) int64
}

type RiskScore struct {
	score       int64
	lastUpdated time.Time
	mu          sync.Mutex
}

type ThresholdNotifier interface {
	Notify(key string, score int64)
}

// RiskEngine scores keys by how often they get denied. Each denial adds one
// point and every decayRate without a denial removes one.
type RiskEngine struct {
	client      *kgo.Client
	keyScores   sync.Map
	threshold   int64
	decayRate   time.Duration
	clock       Clock
	logger      *logf.Logger
	OnThreshold ThresholdNotifier
}

var (
	_ ScoreReader    = (*RiskEngine)(nil)
	_ EventPublisher = (*RiskEngine)(nil)
)

// NewRiskEngine creates an engine. client may be nil when events are fed in
// process through Publish instead of consumed from Kafka.
func NewRiskEngine(client *kgo.Client, threshold int64, decayRate time.Duration, logger *logf.Logger, opts ...Option) *RiskEngine {
	o := buildOptions(opts)
	return &RiskEngine{
		client:    client,
		threshold: threshold,
		decayRate: decayRate,
		clock:     o.clock,
		logger:    loggerOrDisabled(logger),
	}
}

// GetScore returns the current effective risk score for a key,
// applying time-based decay without modifying stored state
func (r *RiskEngine) GetScore(key string) int64 {
	val, ok := r.keyScores.Load(key)
	if !ok {
		return 0
	}
	riskScore := val.(*RiskScore)
	riskScore.mu.Lock()
	defer riskScore.mu.Unlock()
	return r.decayed(riskScore, r.clock.Now())
}

// Publish feeds an event straight into the engine.
func (r *RiskEngine) Publish(event RateLimitEvent) {
	r.handle(event)
}

func (r *RiskEngine) handle(event RateLimitEvent) {
	if event.Action == ActionAllowed {
		return
	}
	currentScore := r.processEvent(event)
	if currentScore > r.threshold && r.OnThreshold != nil {
		r.OnThreshold.Notify(event.Key, currentScore)
	}
}

func (r *RiskEngine) processEvent(event RateLimitEvent) int64 {
	now := r.clock.Now()
	score, _ := r.keyScores.LoadOrStore(event.Key, &RiskScore{lastUpdated: now})
	riskScore := score.(*RiskScore)
	riskScore.mu.Lock()
	defer riskScore.mu.Unlock()

	riskScore.score = r.decayed(riskScore, now) + 1
	riskScore.lastUpdated = now
	return riskScore.score
}

func (r *RiskEngine) decayed(riskScore *RiskScore, now time.Time) int64 {
	if r.decayRate <= 0 {
		return riskScore.score
	}
	intervals := int64(now.Sub(riskScore.lastUpdated) / r.decayRate)
	current := riskScore.score - intervals
	if current < 0 {
		current = 0
	}
	return current
}

// EventReader consumes events from the client's topics until ctx is done
// or the client is closed.
func (r *RiskEngine) EventReader(ctx context.Context) {
	if r.client == nil {
		return
	}
	for {
		fetches := r.client.PollFetches(ctx)

		if ctx.Err() != nil {
			r.logger.Info("risk engine stopped", logf.Error(ctx.Err()))
			return
		}
		if fetches.IsClientClosed() {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			r.logger.Warn("fetch failed",
				logf.String("topic", topic), logf.Int32("partition", partition), logf.Error(err))
		})

		fetches.EachRecord(func(record *kgo.Record) {
			var event RateLimitEvent
			if err := json.Unmarshal(record.Value, &event); err != nil {
				r.logger.Debug("skipping malformed event", logf.Error(err))
				return
			}
			r.handle(event)
		})
	}
}
