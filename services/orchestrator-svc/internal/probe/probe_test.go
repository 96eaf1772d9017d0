package probe

import (
	"log/slog"
	"testing"

	"orchestrator/pkg/orchestration/orchestrator"
	"orchestrator/pkg/orchestration/restypes"
)

func TestNew_NilBeforeAssignment(t *testing.T) {
	var orch *orchestrator.Orchestrator
	p := New(&orch)

	// Sample must not panic when called before the Orchestrator variable
	// it reads from has been assigned.
	s := p.Sample("svc-1", 12, func() float64 { return 0.5 })
	if s.CPU != 0 {
		t.Errorf("CPU = %v, want 0 before assignment", s.CPU)
	}
}

func TestNew_ReadsPlacedServiceUtilization(t *testing.T) {
	var orch *orchestrator.Orchestrator
	p := New(&orch)
	orch = orchestrator.New(slog.Default(), orchestrator.DefaultConfig(), p)

	orch.RegisterNode("node-1", true)
	orch.RegisterService("svc-1", restypes.Requirements{CPU: 1, Mem: 100, Bandwidth: 10}, 50)

	// Unplaced services report zero utilization.
	s := p.Sample("svc-1", 12, func() float64 { return 0.5 })
	if s.CPU != 0 {
		t.Errorf("CPU for unplaced service = %v, want 0", s.CPU)
	}

	n, err := orch.Node("node-1")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	n.Capacity.Allocate(restypes.Requirements{CPU: 2, Mem: 0, Bandwidth: 0})
	svc, err := orch.Service("svc-1")
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	svc.SetNode("node-1")

	s = p.Sample("svc-1", 12, func() float64 { return 0.5 })
	if s.CPU <= 0 {
		t.Errorf("CPU for placed service on a loaded node = %v, want > 0", s.CPU)
	}
}

func TestRand01_ReturnsUnitRange(t *testing.T) {
	f := Rand01()
	for i := 0; i < 100; i++ {
		v := f()
		if v < 0 || v >= 1 {
			t.Fatalf("Rand01 produced %v, want [0,1)", v)
		}
	}
}
