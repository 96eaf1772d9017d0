package monitor

import (
	"testing"
	"time"
)

func TestEntityState_AdaptiveInterval_DownShift(t *testing.T) {
	// Latencies oscillating with std ~= 23% of mean give v ~= 0.054; new
	// interval ~= 1s*sqrt(0.05/0.054) ~= 0.96s, clamped against service
	// Lsla/10 = 10ms so the upper clamp bites.
	tuning := DefaultTuning()
	st := newEntityState(KindService, "svc", tuning)
	samples := []float64{100, 130, 70, 130, 70, 100, 130, 70, 100, 100}
	var interval time.Duration
	for _, s := range samples {
		interval = st.recordSample(s, Sample{LatencyMs: s})
	}
	if interval != tuning.SLAService/10 {
		t.Errorf("expected clamp to Lsla/10=%v, got %v", tuning.SLAService/10, interval)
	}
}

func TestEntityState_LowVariance_ClampsAtUpperBound(t *testing.T) {
	tuning := DefaultTuning()
	st := newEntityState(KindNode, "n1", tuning)
	// Constant CPU utilization: near-zero variance should drive the
	// interval to its maximum (Lsla/10) rather than collapse it.
	for i := 0; i < 5; i++ {
		st.recordSample(0.5, Sample{CPU: 0.5})
	}
	if st.currentInterval() != tuning.SLANode/10 {
		t.Errorf("expected interval to clamp at node Lsla/10=%v for near-zero variance, got %v", tuning.SLANode/10, st.currentInterval())
	}
}

type fixedProbe struct {
	sample Sample
}

func (f fixedProbe) Sample(string, float64, func() float64) Sample { return f.sample }

func TestMonitor_RegisterAndReportCompletion(t *testing.T) {
	m := New(fixedProbe{sample: Sample{LatencyMs: 50, RequestRate: 0.8}})
	m.RegisterChain("c1", []string{"a", "b"})

	if err := m.ReportCompletion("c1", 42, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.ReportCompletion("missing", 42, true); err == nil {
		t.Error("expected ChainNotFound for unknown chain")
	}
}

func TestMonitor_StartStop_JoinsWithinTimeout(t *testing.T) {
	m := New(fixedProbe{sample: Sample{LatencyMs: 10, CPU: 0.1}})
	m.RegisterService("svc-1")
	m.RegisterNode("node-1")
	m.Start()

	if err := m.Stop(); err != nil {
		t.Fatalf("expected clean shutdown within timeout, got %v", err)
	}
	// Stop must be idempotent.
	if err := m.Stop(); err != nil {
		t.Fatalf("expected idempotent Stop, got %v", err)
	}
}

func TestPearsonCorrelation_ZeroWhenConstant(t *testing.T) {
	got := Interference(0.5, 0.5, 0.5, 0.3, 0.3, 0.3)
	if got != 0 {
		t.Errorf("expected 0 correlation when either series has zero stdev, got %f", got)
	}
}

func TestPearsonCorrelation_PerfectPositive(t *testing.T) {
	got := Interference(0.1, 0.5, 0.9, 0.1, 0.5, 0.9)
	if got < 0.999 {
		t.Errorf("expected near-1 correlation for identical triples, got %f", got)
	}
}

func TestDeriveChainMetrics_Bottleneck(t *testing.T) {
	m := New(fixedProbe{})
	m.RegisterService("a")
	m.RegisterService("b")
	m.RegisterChain("c1", []string{"a", "b"})

	m.mu.Lock()
	m.services["a"].metrics = Sample{LatencyMs: 10, RequestRate: 5}
	m.services["b"].metrics = Sample{LatencyMs: 20, RequestRate: 2}
	got := m.deriveChainMetricsLocked("c1")
	m.mu.Unlock()

	if got.RequestRate != 2 {
		t.Errorf("expected bottleneck rate 2, got %f", got.RequestRate)
	}
	wantLatency := 10.0 + 20.0 + defaultInterNodeDelayMs
	if got.LatencyMs != wantLatency {
		t.Errorf("expected latency %f, got %f", wantLatency, got.LatencyMs)
	}
	if got.MaxLatencyMs != 20 {
		t.Errorf("expected max per-service latency 20, got %f", got.MaxLatencyMs)
	}
	if got.MinLatencyMs != 10 {
		t.Errorf("expected min per-service latency 10, got %f", got.MinLatencyMs)
	}
}
