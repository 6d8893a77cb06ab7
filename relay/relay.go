// Package relay mirrors execution events onto redis pub/sub channels so
// out-of-process consumers, like the fanout tier, can stream them to
// browsers. One channel per execution: <prefix>:<executionID>.
package relay

import (
	"context"
	"encoding/json"

	"github.com/flowscript/orchestrator/events"
)

// DefaultChannelPrefix is used when no prefix is configured.
const DefaultChannelPrefix = "workflow:events"

// Broker is the publishing side of redis pub/sub.
type Broker interface {
	Publish(ctx context.Context, channel, message string) error
}

// Logger interface for relay logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Publisher forwards an execution's events to its redis channel. Events
// are consumed through a buffered channel subscription so a slow broker
// never stalls the execution; overflow is dropped and counted.
type Publisher struct {
	broker Broker
	prefix string
	logger Logger
}

// NewPublisher creates a publisher. An empty prefix falls back to
// DefaultChannelPrefix.
func NewPublisher(broker Broker, prefix string, logger Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{
		broker: broker,
		prefix: prefix,
		logger: logger,
	}
}

// Channel returns the redis channel carrying one execution's events.
func (p *Publisher) Channel(executionID string) string {
	return p.prefix + ":" + executionID
}

// Attach starts mirroring the emitter's events. The pump stops when the
// emitter closes or ctx is cancelled.
func (p *Publisher) Attach(ctx context.Context, em *events.Emitter) {
	sub := em.SubscribeChan(256)
	go p.pump(ctx, em.ExecutionID(), sub)
}

func (p *Publisher) pump(ctx context.Context, executionID string, sub *events.ChannelSub) {
	channel := p.Channel(executionID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if n := sub.Dropped(); n > 0 {
					p.logger.Warn("relay dropped events",
						"execution_id", executionID,
						"dropped", n)
				}
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("failed to encode event",
					"execution_id", executionID,
					"event", ev.Type,
					"error", err)
				continue
			}
			if err := p.broker.Publish(ctx, channel, string(payload)); err != nil {
				p.logger.Warn("failed to relay event",
					"execution_id", executionID,
					"event", ev.Type,
					"error", err)
			}
		}
	}
}
