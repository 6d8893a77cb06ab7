package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/flowscript/orchestrator/sdk"
)

// delayNode sleeps for a configured number of milliseconds. It wakes
// early when the invocation context is cancelled so execution cancel
// never waits out the timer.
type delayNode struct{}

func (n *delayNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:          "delay",
		Description:   "Waits a configured number of milliseconds",
		Type:          sdk.TypeAction,
		ExpectedEdges: []string{"success"},
	}
}

func (n *delayNode) Execute(ctx context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	duration, ok := sdk.DurationMS(ec.Config, "duration")
	if !ok || duration < 0 {
		return nil, fmt.Errorf("delay requires a non-negative duration in milliseconds")
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return sdk.Success(map[string]interface{}{
		"duration": duration.Milliseconds(),
	}), nil
}

// logNode writes a templated message to the execution log.
type logNode struct {
	logger Logger
}

func (n *logNode) Metadata() sdk.Metadata {
	return sdk.Metadata{
		Name:          "log",
		Description:   "Logs a templated message at a configurable level",
		Type:          sdk.TypeAction,
		ExpectedEdges: []string{"success"},
	}
}

func (n *logNode) Execute(_ context.Context, ec *sdk.ExecutionContext) (*sdk.Result, error) {
	message, ok := sdk.StringValue(ec.Config, "message")
	if !ok {
		return nil, fmt.Errorf("log requires a message")
	}

	level, _ := sdk.StringValue(ec.Config, "level")
	fields := []interface{}{"node_id", ec.NodeID}
	switch level {
	case "debug":
		n.logger.Debug(message, fields...)
	case "warn":
		n.logger.Warn(message, fields...)
	case "error":
		n.logger.Error(message, fields...)
	default:
		n.logger.Info(message, fields...)
	}

	return sdk.Success(map[string]interface{}{"message": message}), nil
}
