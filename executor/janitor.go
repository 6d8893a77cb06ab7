package executor

import (
	"context"
	"time"
)

const (
	defaultJanitorInterval  = 1 * time.Minute
	defaultJanitorRetention = 1 * time.Hour
)

// Janitor periodically evicts finished executions from a manager so
// long-running services do not accumulate terminal state forever.
type Janitor struct {
	manager       *Manager
	logger        Logger
	checkInterval time.Duration
	retention     time.Duration
}

// NewJanitor creates a janitor with default interval and retention.
func NewJanitor(manager *Manager, logger Logger) *Janitor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Janitor{
		manager:       manager,
		logger:        logger,
		checkInterval: defaultJanitorInterval,
		retention:     defaultJanitorRetention,
	}
}

// WithCheckInterval sets how often the janitor scans.
func (j *Janitor) WithCheckInterval(d time.Duration) *Janitor {
	j.checkInterval = d
	return j
}

// WithRetention sets how long terminal executions stay queryable.
func (j *Janitor) WithRetention(d time.Duration) *Janitor {
	j.retention = d
	return j
}

// Start runs the eviction loop until ctx is cancelled. Call it in a
// goroutine.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.checkInterval)
	defer ticker.Stop()

	j.logger.Info("execution janitor started",
		"check_interval", j.checkInterval.String(),
		"retention", j.retention.String())

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("execution janitor stopped")
			return
		case <-ticker.C:
			j.manager.CleanupCompleted(j.retention)
		}
	}
}
