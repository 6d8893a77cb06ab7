package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowscript/orchestrator/common/logger"
	redisc "github.com/flowscript/orchestrator/common/redis"
	"github.com/flowscript/orchestrator/relay"
)

// Subscriber feeds relay channels into the hub. It pattern-subscribes
// to every per-execution channel under the configured prefix.
type Subscriber struct {
	redis  *redisc.Client
	hub    *Hub
	prefix string
	log    *logger.Logger
}

// NewSubscriber creates a subscriber for the given channel prefix.
func NewSubscriber(redisClient *redisc.Client, hub *Hub, prefix string, log *logger.Logger) *Subscriber {
	if prefix == "" {
		prefix = relay.DefaultChannelPrefix
	}
	return &Subscriber{
		redis:  redisClient,
		hub:    hub,
		prefix: prefix,
		log:    log,
	}
}

// Start consumes relay messages until ctx is cancelled. The underlying
// pubsub reconnects on its own; an error here means the initial
// subscription never went through.
func (s *Subscriber) Start(ctx context.Context) error {
	pattern := s.prefix + ":*"
	pubsub := s.redis.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	s.log.Info("subscribed to relay channels", "pattern", pattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("subscriber stopping")
			return nil

		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			executionID := strings.TrimPrefix(msg.Channel, s.prefix+":")
			if executionID == "" || executionID == msg.Channel {
				s.log.Warn("unexpected channel name", "channel", msg.Channel)
				continue
			}
			s.hub.broadcast <- &Message{
				ExecutionID: executionID,
				Data:        []byte(msg.Payload),
			}
		}
	}
}
