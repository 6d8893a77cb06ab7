package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/flowscript/orchestrator/common/config"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry serves the pprof and Prometheus metrics endpoints on their
// own listeners, apart from the API port.
type Telemetry struct {
	cfg config.TelemetryConfig
	log *logger.Logger
}

// New creates telemetry components
func New(cfg config.TelemetryConfig, log *logger.Logger) *Telemetry {
	return &Telemetry{
		cfg: cfg,
		log: log,
	}
}

// Start starts the enabled telemetry endpoints
func (t *Telemetry) Start(ctx context.Context) error {
	if t.cfg.EnablePprof {
		// pprof registers itself on the default mux
		addr := fmt.Sprintf("localhost:%d", t.cfg.PprofPort)
		go func() {
			t.log.Info("pprof server starting", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				t.log.Error("pprof server error", "error", err)
			}
		}()
	}

	if t.cfg.EnableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", t.cfg.MetricsPort)
		go func() {
			t.log.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				t.log.Error("metrics server error", "error", err)
			}
		}()
	}

	return nil
}
