// Package orchestratorsvc exposes a constructor for external benchmarks
// and integration tests that want a running orchestrator core without
// going through cmd/main's config/telemetry/database bootstrap.
package orchestratorsvc

import (
	"log/slog"

	"orchestrator/pkg/orchestration/monitor"
	"orchestrator/pkg/orchestration/orchestrator"
)

// NewBenchmarkOrchestrator builds an Orchestrator over a SyntheticProbe,
// suitable for benchmarks and tests that don't need a live telemetry
// source or an HTTP listener.
func NewBenchmarkOrchestrator(log *slog.Logger) *orchestrator.Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	probe := &monitor.SyntheticProbe{}
	return orchestrator.New(log, orchestrator.DefaultConfig(), probe)
}
